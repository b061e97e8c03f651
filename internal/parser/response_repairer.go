package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"cv-ingest-go/internal/types"
)

// ErrRepairFailed 原始文本经启发式修复后仍无法解析
var ErrRepairFailed = errors.New("无法修复LLM返回的结构化文本")

// ExtractionRepairer 把可能损坏的结构化文本恢复为可解析形式。
// 修复逻辑是脆弱的字符串启发式，收敛在这个窄接口后面，
// 以便将来替换为更严格的基于语法的恢复实现而不影响调用方。
type ExtractionRepairer interface {
	Repair(raw string) (*types.RawExtraction, error)
}

// BraceRepairer 基于括号扫描的默认修复实现
type BraceRepairer struct{}

// NewBraceRepairer 创建默认修复器
func NewBraceRepairer() *BraceRepairer {
	return &BraceRepairer{}
}

// 匹配行尾悬空的 "key": （后面没有值）
var danglingKeyRe = regexp.MustCompile(`"([^"]+)"\s*:\s*$`)

// Repair 尝试把raw恢复为可解析的JSON对象。
// 步骤：去除前导杂文 -> 括号深度扫描截断尾部杂文 -> 补齐缺失的右括号
// -> 为悬空的键补空字符串值。全部失败时返回ErrRepairFailed，
// 由调用方回退到空白记录，绝不静默吞掉。
func (r *BraceRepairer) Repair(raw string) (*types.RawExtraction, error) {
	// 先尝试直接解析，未损坏的输出不需要修复
	if fields, ok := tryParse(raw); ok {
		return &types.RawExtraction{
			RawText: raw,
			State:   types.ExtractionParsed,
			Fields:  fields,
		}, nil
	}

	repaired, err := repairText(raw)
	if err != nil {
		return &types.RawExtraction{
			RawText: raw,
			State:   types.ExtractionUnparseable,
			Err:     err.Error(),
		}, err
	}

	fields, ok := tryParse(repaired)
	if !ok {
		err := fmt.Errorf("%w: 修复后的文本仍然不是合法JSON", ErrRepairFailed)
		return &types.RawExtraction{
			RawText: raw,
			State:   types.ExtractionUnparseable,
			Err:     err.Error(),
		}, err
	}

	return &types.RawExtraction{
		RawText: raw,
		State:   types.ExtractionRepaired,
		Fields:  fields,
	}, nil
}

func tryParse(text string) (map[string]interface{}, bool) {
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &fields); err != nil {
		return nil, false
	}
	return fields, true
}

// repairText 执行纯文本层面的修复，不做JSON解析
func repairText(raw string) (string, error) {
	// 1. 定位首个左括号，丢弃之前的前导文本（如"Here is the JSON:"）
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", fmt.Errorf("%w: 文本中没有左括号", ErrRepairFailed)
	}
	text := raw[start:]

	// 2. 感知字符串字面量的括号深度扫描，
	//    深度归零即为完整对象，截断此处可去掉模型附加的尾部评论
	depth := 0
	inString := false
	escaped := false
	stringStart := -1
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
			stringStart = i
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[:i+1], nil
			}
		}
	}

	// 3. 未找到平衡点：字符串字面量被中途截断时整体丢弃，
	//    回退到其开引号处，残缺的半个值比空值更危险
	if inString && stringStart >= 0 {
		text = text[:stringStart]
	}

	// 4. 悬空的 "key": 补一个空字符串值，避免未终结的赋值
	trimmed := strings.TrimRight(text, " \t\n\r,")
	if danglingKeyRe.MatchString(trimmed) {
		text = trimmed + ` ""`
	} else {
		text = trimmed
	}
	// 丢弃截断值后可能残留尾逗号
	text = strings.TrimRight(text, ",")

	// 5. 按未闭合的深度补齐右括号
	if depth > 0 {
		text += strings.Repeat("}", depth)
	}

	return text, nil
}
