package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// 内容指纹的文本归一化规则
var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// 保留字母数字与 @ . - ，其余格式字符全部剥离。
	// Go的\w只匹配ASCII，必须用\p{L}\p{N}，否则中文等非ASCII简历会被剥空
	formatCharRe = regexp.MustCompile(`[^\p{L}\p{N}_\s@.-]`)
	// 嵌入的日期会随导出时间变化（如"Generated on 2023-12-01"），参与哈希前移除
	isoDateRe   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	slashDateRe = regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`)
	// 姓名前的称谓前缀
	honorificRe = regexp.MustCompile(`^(mr|ms|mrs|dr|prof)\.?`)
	nonDigitRe  = regexp.MustCompile(`\D`)
)

// ContentHash 计算简历原文的内容指纹，用于捕获逐字节等价的重复提交。
// 两份实质内容相同、仅格式或嵌入日期不同的简历必须得到相同指纹。
// 空文本返回空串（视为"未知"，未知之间永不相互匹配）。
func ContentHash(resumeText string) string {
	if strings.TrimSpace(resumeText) == "" {
		return ""
	}

	clean := strings.ToLower(resumeText)
	clean = whitespaceRe.ReplaceAllString(clean, " ")
	// 日期移除必须先于格式字符剥离，否则斜杠日期的分隔符先被吃掉
	clean = isoDateRe.ReplaceAllString(clean, "")
	clean = slashDateRe.ReplaceAllString(clean, "")
	clean = formatCharRe.ReplaceAllString(clean, "")

	sum := sha256.Sum256([]byte(strings.TrimSpace(clean)))
	return hex.EncodeToString(sum[:])
}

// PersonSoftID 基于姓名和电话生成人员软标识，
// 用于捕获同一个人提交的多份不同简历文件。
// 没有任何身份信息时回退为随机值，保证这类记录不会误伤真实身份。
func PersonSoftID(firstName, lastName, phone string) string {
	var parts []string

	if clean := normalizeNamePart(firstName); clean != "" {
		parts = append(parts, clean)
	}
	if clean := normalizeNamePart(lastName); clean != "" {
		parts = append(parts, clean)
	}

	// 电话作为区分度补充：区号尺寸的前缀 + 末7位
	if fragment := phoneFragment(phone); fragment != "" {
		parts = append(parts, fragment)
	}

	identity := strings.Join(parts, "")
	if identity == "" {
		identity = "unknown_" + uuid.NewString()
	}

	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])[:16]
}

// PhonesSimilar 判断两个电话号码是否可能属于同一个人：
// 归一化后相等，或末7位相同（本地号相同、区号不同），
// 或末4位相同且长度差≤1（办公与手机号的变体）。
func PhonesSimilar(a, b string) bool {
	cleanA := nonDigitRe.ReplaceAllString(a, "")
	cleanB := nonDigitRe.ReplaceAllString(b, "")

	if len(cleanA) < 7 || len(cleanB) < 7 {
		return false
	}
	if cleanA == cleanB {
		return true
	}
	if cleanA[len(cleanA)-7:] == cleanB[len(cleanB)-7:] {
		return true
	}
	if len(cleanA) >= 10 && len(cleanB) >= 10 {
		diff := len(cleanA) - len(cleanB)
		if diff < 0 {
			diff = -diff
		}
		if diff <= 1 && cleanA[len(cleanA)-4:] == cleanB[len(cleanB)-4:] {
			return true
		}
	}
	return false
}

// NormalizeNameForMatch 规范化姓名用于宽松匹配（小写、去内部空白、去称谓）
func NormalizeNameForMatch(name string) string {
	return normalizeNamePart(name)
}

func normalizeNamePart(name string) string {
	clean := whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "")
	return honorificRe.ReplaceAllString(clean, "")
}

// phoneFragment 从电话中提取软标识用的数字片段，不足7位时不参与标识
func phoneFragment(phone string) string {
	digits := nonDigitRe.ReplaceAllString(phone, "")
	if len(digits) < 7 {
		return ""
	}
	areaCode := ""
	if len(digits) >= 10 {
		areaCode = digits[len(digits)-10 : len(digits)-7]
	}
	return areaCode + digits[len(digits)-7:]
}
