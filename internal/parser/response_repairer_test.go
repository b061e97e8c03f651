package parser

import (
	"errors"
	"testing"

	"cv-ingest-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairValidJSONPassesThrough(t *testing.T) {
	r := NewBraceRepairer()

	raw := `{"first_name": "John", "last_name": "Doe", "years_of_experience": 5}`
	result, err := r.Repair(raw)
	require.NoError(t, err, "合法JSON不应返回错误")

	assert.Equal(t, types.ExtractionParsed, result.State, "未损坏的输出应直接解析成功")
	assert.Equal(t, "John", result.Fields["first_name"], "字段应原样保留")
	assert.Equal(t, float64(5), result.Fields["years_of_experience"], "数值字段应原样保留")
}

func TestRepairStripsLeadingAndTrailingCommentary(t *testing.T) {
	r := NewBraceRepairer()

	raw := "Here is the extracted JSON:\n" + `{"first_name": "Jane", "email": "jane@example.com"}` + "\nHope this helps!"
	result, err := r.Repair(raw)
	require.NoError(t, err, "修复前后缀杂文不应失败")

	assert.Equal(t, types.ExtractionRepaired, result.State, "剥离杂文后的输出应标记为已修复")
	assert.Equal(t, "Jane", result.Fields["first_name"])
	assert.Equal(t, "jane@example.com", result.Fields["email"])
}

func TestRepairTruncatedStringValue(t *testing.T) {
	r := NewBraceRepairer()

	// 字符串值中途被截断，残缺的半个值应整体丢弃
	raw := `{"first_name": "Jo`
	result, err := r.Repair(raw)
	require.NoError(t, err, "截断的字符串值应可修复")

	assert.Equal(t, types.ExtractionRepaired, result.State)
	assert.Equal(t, "", result.Fields["first_name"], "截断的值应回退为空串而不是半个值")
}

func TestRepairDanglingKey(t *testing.T) {
	r := NewBraceRepairer()

	raw := `{"first_name": "Amy", "last_name":`
	result, err := r.Repair(raw)
	require.NoError(t, err, "悬空的键应可修复")

	assert.Equal(t, types.ExtractionRepaired, result.State)
	assert.Equal(t, "Amy", result.Fields["first_name"], "完整的字段应保留")
	assert.Equal(t, "", result.Fields["last_name"], "悬空的键应补空字符串值")
}

func TestRepairMissingClosingBraces(t *testing.T) {
	r := NewBraceRepairer()

	raw := `{"expertise_details": {"Python": {"work_experience": "5 years"`
	result, err := r.Repair(raw)
	require.NoError(t, err, "缺失右括号应可修复")

	assert.Equal(t, types.ExtractionRepaired, result.State)
	details, ok := result.Fields["expertise_details"].(map[string]interface{})
	require.True(t, ok, "嵌套对象应被恢复")
	python, ok := details["Python"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "5 years", python["work_experience"])
}

func TestRepairTrailingComma(t *testing.T) {
	r := NewBraceRepairer()

	raw := `{"first_name": "Bob", "skill_keywords": ["Go", "Rust"],`
	result, err := r.Repair(raw)
	require.NoError(t, err, "尾逗号应可修复")

	assert.Equal(t, types.ExtractionRepaired, result.State)
	assert.Equal(t, "Bob", result.Fields["first_name"])
}

func TestRepairNoBraceAtAll(t *testing.T) {
	r := NewBraceRepairer()

	result, err := r.Repair("I'm sorry, I cannot parse this resume.")
	require.Error(t, err, "没有左括号的文本应返回错误")
	assert.True(t, errors.Is(err, ErrRepairFailed), "错误应可通过errors.Is识别")
	assert.Equal(t, types.ExtractionUnparseable, result.State, "无法修复时状态应为UNPARSEABLE")
	assert.NotEmpty(t, result.Err, "失败原因应记录在结果中")
	assert.Nil(t, result.Fields, "无法解析时不应产出字段")
}

func TestRepairEscapedQuotesInsideString(t *testing.T) {
	r := NewBraceRepairer()

	raw := `{"notes": "said \"hello\" and left"} trailing garbage`
	result, err := r.Repair(raw)
	require.NoError(t, err, "转义引号不应干扰括号扫描")

	assert.Equal(t, types.ExtractionRepaired, result.State)
	assert.Equal(t, `said "hello" and left`, result.Fields["notes"])
}
