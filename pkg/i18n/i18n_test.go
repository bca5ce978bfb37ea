package i18n_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corra-ai/corra-ai/pkg/i18n"
)

func TestLocalizerCatalogs(t *testing.T) {
	l := i18n.NewLocalizer("en", "zh-CN")

	assert.Equal(t, "Not found.", l.Get("en", i18n.ERROR_NOT_FOUND))
	assert.Equal(t, "内容不存在。", l.Get("zh-CN", i18n.ERROR_NOT_FOUND))

	// 未注册语言与未知 key 都原样返回
	assert.Equal(t, i18n.ERROR_NOT_FOUND, l.Get("fr", i18n.ERROR_NOT_FOUND))
	assert.Equal(t, "error.unknown", l.Get("en", "error.unknown"))
}
