package types

import "fmt"

type TableName string

func (s TableName) Name() string {
	return fmt.Sprintf("%s%s", TABLE_PREFIX, s)
}

const TABLE_PREFIX = "corra_"

const (
	TABLE_ENTRY       = TableName("entry")
	TABLE_DATA_BLOCK  = TableName("data_block")
	TABLE_FILE_META   = TableName("file_meta")
	TABLE_INGEST_TASK = TableName("ingest_task")
	TABLE_QUERY_LOG   = TableName("query_log")
)
