package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corra-ai/corra-ai/pkg/utils"
)

func TestGenUniqIDStr(t *testing.T) {
	seen := make(map[string]struct{})
	for range 1000 {
		id := utils.GenUniqIDStr()
		_, dup := seen[id]
		assert.False(t, dup, id)
		seen[id] = struct{}{}
	}
}

func TestMD5(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", utils.MD5(""))
	assert.Equal(t, utils.MD5("部门预算"), utils.MD5("部门预算"))
	assert.NotEqual(t, utils.MD5("a"), utils.MD5("b"))
}
