package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ColumnType 表格列的推断类型
type ColumnType string

const (
	COLUMN_TYPE_NUMERIC  ColumnType = "numeric"
	COLUMN_TYPE_DATETIME ColumnType = "datetime"
	COLUMN_TYPE_TEXT     ColumnType = "text"
)

// ColumnSpec 单列的结构化分析结果
type ColumnSpec struct {
	Name        string     `json:"name"`
	Type        ColumnType `json:"type"`
	Samples     []string   `json:"samples,omitempty"`     // 采样值，最多5个
	Cardinality int        `json:"cardinality"`           // 去重后的取值数
	NullCount   int        `json:"null_count"`            // 空值数量
}

type ColumnSpecs []ColumnSpec

func (c ColumnSpecs) Value() (driver.Value, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c)
}

func (c *ColumnSpecs) Scan(src interface{}) error {
	switch src := src.(type) {
	case []byte:
		return json.Unmarshal(src, c)
	case string:
		return json.Unmarshal([]byte(src), c)
	case nil:
		*c = nil
		return nil
	}
	return fmt.Errorf("cannot convert %T to ColumnSpecs", src)
}

// FileMeta 源文档的结构化元信息，与 Entry 一对一，仅在表格类分析成功时写入。
// 缺失不影响检索。
type FileMeta struct {
	EntryID      string      `json:"entry_id" db:"entry_id"`           // 关联 entry，主键
	RowCount     int         `json:"row_count" db:"row_count"`         // 数据行数
	ColumnCount  int         `json:"column_count" db:"column_count"`   // 列数
	Columns      ColumnSpecs `json:"columns" db:"columns"`             // 各列分析结果
	TimeRangeSt  string      `json:"time_range_st" db:"time_range_st"` // 检测到的时间范围起点，无则为空
	TimeRangeEt  string      `json:"time_range_et" db:"time_range_et"` // 检测到的时间范围终点
	QualityScore float64     `json:"quality_score" db:"quality_score"` // 数据质量评分 [0,1]，非空率
	CreatedAt    int64       `json:"created_at" db:"created_at"`
}
