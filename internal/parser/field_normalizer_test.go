package parser

import (
	"testing"

	"cv-ingest-go/internal/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCountry(t *testing.T) {
	cases := []struct {
		name     string
		location string
		want     string
	}{
		{"美国缩写展开", "New York, USA", "United States"},
		{"两字母国家码展开", "Dhaka, BD", "Bangladesh"},
		{"已是国家名原样返回", "France", "France"},
		{"已知国家名Title-Case", "london, united kingdom", "United Kingdom"},
		{"无逗号的缩写", "USA", "United States"},
		{"未知的最后一段尽力返回", "Remote, Mars Colony", "Mars Colony"},
		{"空输入", "", ""},
		{"多段取最后一段", "Gulshan, Dhaka, Bangladesh", "Bangladesh"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractCountry(tc.location), "位置 %q 的国家提取结果不符", tc.location)
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://linkedin.com/in/jane", NormalizeURL("linkedin.com/in/jane"), "无协议应补https://")
	assert.Equal(t, "http://example.com", NormalizeURL("http://example.com"), "已有协议不应改写")
	assert.Equal(t, "https://cdn.example.com/cv", NormalizeURL("//cdn.example.com/cv"), "协议相对URL应补https:")
	assert.Equal(t, "", NormalizeURL("  "), "空白输入应返回空串")
}

func TestSplitLabels(t *testing.T) {
	got := SplitLabels([]string{"Python and Django", "Java"})
	assert.Equal(t, []string{"Python", "Django", "Java"}, got, "组合标签应按分隔符拆开")

	// 已拆分的列表应保持不变
	again := SplitLabels(got)
	assert.Equal(t, got, again, "拆分应幂等")

	assert.Equal(t, []string{"Go"}, SplitLabels([]string{"Go", "Go", " Go "}), "重复标签应去重")
	assert.Equal(t, []string{"ML", "NLP"}, SplitLabels([]string{"ML / NLP"}), "斜杠分隔符应生效")
	assert.Empty(t, SplitLabels([]string{"", "  "}), "空白条目应被丢弃")
}

func TestNormalizeFullRecord(t *testing.T) {
	n := NewFieldNormalizer(zerolog.Nop())

	fields := map[string]interface{}{
		"first_name":          "  John ",
		"last_name":           "Doe",
		"email":               "john@example.com",
		"phone_number":        "+1-212-555-0100",
		"location":            "Austin, USA",
		"date_of_birth":       "1990-05-20",
		"years_of_experience": float64(8),
		"linkedin_profile":    "linkedin.com/in/johndoe",
		"expertise_areas":     []interface{}{"Python and Django", "DevOps"},
		"skill_keywords":      []interface{}{"Go", "", "Kubernetes"},
		"languages_spoken": []interface{}{
			map[string]interface{}{"language": "English", "proficiency": "Fluent", "mother_tongue": false},
			"Bengali", // 原始输出退化为纯字符串时应容忍
			map[string]interface{}{"proficiency": "无语言名的条目应丢弃"},
		},
		"expertise_details": map[string]interface{}{
			"Python and Django": map[string]interface{}{
				"work_experience": "5 years at Acme",
			},
		},
	}

	out := n.Normalize(fields)

	assert.Equal(t, "John", out.FirstName, "字符串字段应去空白")
	assert.Equal(t, "United States", out.Location, "位置应归一化为国家名")
	require.NotNil(t, out.DateOfBirth, "合法出生日期应保留")
	assert.Equal(t, "1990-05-20", *out.DateOfBirth)
	require.NotNil(t, out.YearsOfExperience)
	assert.Equal(t, 8, *out.YearsOfExperience)
	assert.Equal(t, "https://linkedin.com/in/johndoe", out.LinkedinProfile)

	assert.Equal(t, []string{"Python", "Django", "DevOps"}, out.ExpertiseAreas, "专长领域应拆分")
	assert.Equal(t, []string{"Go", "Kubernetes"}, out.SkillKeywords, "空白条目应被丢弃")

	require.Len(t, out.LanguagesSpoken, 2, "无语言名的条目应丢弃")
	assert.Equal(t, "English", out.LanguagesSpoken[0].Language)
	assert.Equal(t, "Bengali", out.LanguagesSpoken[1].Language)

	// 组合键的详情载荷应复制到拆分后的每个键
	require.Contains(t, out.ExpertiseDetails, "Python")
	require.Contains(t, out.ExpertiseDetails, "Django")
	assert.Equal(t, "5 years at Acme", out.ExpertiseDetails["Python"].WorkExperience)
	assert.Equal(t, "5 years at Acme", out.ExpertiseDetails["Django"].WorkExperience)
	// 没有详情的area也应有空条目
	require.Contains(t, out.ExpertiseDetails, "DevOps")
	assert.True(t, out.ExpertiseDetails["DevOps"].IsEmpty())
}

func TestNormalizeExpertiseDetailsMergeDeterministic(t *testing.T) {
	// 两个组合键拆出同一目标键且载荷冲突时，
	// 合并结果必须是确定的：字典序在前的组合键先落位并优先
	n := NewFieldNormalizer(zerolog.Nop())
	raw := map[string]interface{}{
		"expertise_areas": []interface{}{"Go"},
		"expertise_details": map[string]interface{}{
			"Go / Rust":   map[string]interface{}{"other_related_info": "from go-rust"},
			"Python / Go": map[string]interface{}{"other_related_info": "from python-go"},
		},
	}

	first := n.Normalize(raw).ExpertiseDetails["Go"]
	assert.Equal(t, "from go-rust", first.OtherInfo)
	for i := 0; i < 32; i++ {
		assert.Equal(t, first, n.Normalize(raw).ExpertiseDetails["Go"], "合并结果不应随map遍历顺序漂移")
	}
}

func TestNormalizeRejectsMalformedValues(t *testing.T) {
	n := NewFieldNormalizer(zerolog.Nop())

	out := n.Normalize(map[string]interface{}{
		"first_name":              "Amy",
		"date_of_birth":           "20-05-1990", // 非YYYY-MM-DD
		"years_of_experience":     float64(-3),
		"total_experience_months": "not a number",
		"skill_keywords":          "not a list",
	})

	assert.Equal(t, "Amy", out.FirstName)
	assert.Nil(t, out.DateOfBirth, "非法日期格式应丢弃")
	assert.Nil(t, out.YearsOfExperience, "负数经验应丢弃")
	assert.Nil(t, out.TotalExperienceMonths, "非数值应丢弃")
	assert.Empty(t, out.SkillKeywords, "非列表形态应归为空列表")
	assert.NotNil(t, out.SkillKeywords, "列表字段应为空列表而不是nil")
}

func TestNormalizeNilInputReturnsFallback(t *testing.T) {
	n := NewFieldNormalizer(zerolog.Nop())

	out := n.Normalize(nil)
	fallback := types.FallbackResume()

	assert.Equal(t, fallback.Notes, out.Notes, "nil输入应返回带人工复核提示的空白记录")
	assert.Empty(t, out.FirstName)
	assert.NotNil(t, out.ExpertiseAreas)
}
