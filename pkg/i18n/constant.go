package i18n

var ALLOW_LANG = map[string]bool{
	"en":    true,
	"zh-CN": true,
}

const DEFAULT_LANG = "en"

const (
	ERROR_INTERNAL        = "error.internal"
	ERROR_NOT_FOUND       = "error.notfound"
	ERROR_INVALIDARGUMENT = "error.invalidargument"

	ERROR_UNSUPPORTED_FILE_TYPE = "error.file.type.unsupport"
	ERROR_FILE_TOO_LARGE        = "error.file.too_large"
	ERROR_EMPTY_CONTENT         = "error.file.empty_content"
	ERROR_EMBEDDING_DEGRADED    = "error.embedding.degraded"
)
