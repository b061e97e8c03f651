package parser

import (
	"sort"
	"strings"
	"time"

	"cv-ingest-go/internal/types"

	"github.com/rs/zerolog"
)

// FieldNormalizer 把未经信任的动态字段校验并强制转换为规范形式。
// 每个字段的校验失败都在本地恢复为安全默认值（空串/nil/空列表），
// 绝不因单个字段中断整条记录。
type FieldNormalizer struct {
	logger zerolog.Logger
}

// NewFieldNormalizer 创建字段规范化器
func NewFieldNormalizer(logger zerolog.Logger) *FieldNormalizer {
	return &FieldNormalizer{logger: logger}
}

// 专长领域标签的分隔符，按优先级排列，首个命中的生效
var labelSeparators = []string{
	" and ",
	" & ",
	" / ",
	"/",
	" | ",
	" + ",
	", ",
	";",
}

// 2/3字母国家码与常见缩写到全名的映射
var countryCodeMap = map[string]string{
	"USA": "United States",
	"US":  "United States",
	"UK":  "United Kingdom",
	"UAE": "United Arab Emirates",
	"BD":  "Bangladesh",
	"IN":  "India",
	"CA":  "Canada",
	"AU":  "Australia",
	"DE":  "Germany",
	"FR":  "France",
	"JP":  "Japan",
	"CN":  "China",
	"SG":  "Singapore",
	"MY":  "Malaysia",
	"TH":  "Thailand",
	"PH":  "Philippines",
	"ID":  "Indonesia",
	"VN":  "Vietnam",
	"KR":  "South Korea",
	"TW":  "Taiwan",
	"HK":  "Hong Kong",
	"NZ":  "New Zealand",
}

// 用于校验"最后一段看起来像国家"的常见国家集合（小写）
var knownCountries = map[string]struct{}{
	"bangladesh": {}, "india": {}, "pakistan": {}, "nepal": {}, "sri lanka": {},
	"united states": {}, "canada": {}, "mexico": {}, "brazil": {}, "argentina": {},
	"united kingdom": {}, "germany": {}, "france": {}, "italy": {}, "spain": {}, "netherlands": {},
	"china": {}, "japan": {}, "south korea": {}, "singapore": {}, "malaysia": {}, "thailand": {},
	"australia": {}, "new zealand": {}, "south africa": {}, "nigeria": {}, "egypt": {},
	"russia": {}, "ukraine": {}, "poland": {}, "sweden": {}, "norway": {}, "denmark": {},
}

// Normalize 校验并清洗一条解析结果，总是返回完整的规范化草稿
func (n *FieldNormalizer) Normalize(fields map[string]interface{}) *types.ParsedResume {
	out := types.FallbackResume()
	out.Notes = ""
	if len(fields) == 0 {
		n.logger.Warn().Msg("规范化输入为nil，返回空白记录")
		return types.FallbackResume()
	}

	// 普通字符串字段：去空白，缺失即空串
	out.FirstName = stringField(fields, "first_name")
	out.LastName = stringField(fields, "last_name")
	out.Email = stringField(fields, "email")
	out.PhoneNumber = stringField(fields, "phone_number")
	out.CurrentEmployer = stringField(fields, "current_employer")
	out.Availability = stringField(fields, "availability")
	out.PreferredContractType = stringField(fields, "preferred_contract_type")
	out.PreferredWorkArrangement = stringField(fields, "preferred_work_arrangement")
	out.References = stringField(fields, "references")
	out.Notes = stringField(fields, "notes")

	// location 只保留国家名
	out.Location = ExtractCountry(stringField(fields, "location"))

	// URL字段补全协议
	out.LinkedinProfile = NormalizeURL(stringField(fields, "linkedin_profile"))
	out.WebsitePortfolio = NormalizeURL(stringField(fields, "website_portfolio"))

	// 出生日期仅接受严格的 YYYY-MM-DD
	if dob := stringField(fields, "date_of_birth"); dob != "" {
		if _, err := time.Parse("2006-01-02", dob); err == nil {
			out.DateOfBirth = &dob
		}
	}

	// 数值字段：仅接受非负数字，否则nil
	out.YearsOfExperience = intField(fields, "years_of_experience")
	out.TotalExperienceMonths = intField(fields, "total_experience_months")

	// expertise_areas 先清洗再做标签拆分
	out.ExpertiseAreas = SplitLabels(listField(fields, "expertise_areas"))

	// 其余数组字段不拆分，仅保留非空字符串
	out.Sectors = listField(fields, "sectors")
	out.SkillKeywords = listField(fields, "skill_keywords")
	out.ProfessionalCertifications = listField(fields, "professional_certifications")
	out.ProfessionalAssociations = listField(fields, "professional_associations")
	out.Publications = listField(fields, "publications")

	out.LanguagesSpoken = n.normalizeLanguages(fields["languages_spoken"])
	out.ExpertiseDetails = n.normalizeExpertiseDetails(fields["expertise_details"], out.ExpertiseAreas)

	return out
}

// ExtractCountry 从自由文本位置中提取国家名。
// 逗号分段取最后一段；命中国家码映射则展开为全名；
// 命中已知国家集合则Title-Case；否则原样返回最后一段。
func ExtractCountry(location string) string {
	location = strings.TrimSpace(location)
	if location == "" {
		return ""
	}

	if idx := strings.LastIndex(location, ","); idx >= 0 {
		last := strings.TrimSpace(location[idx+1:])
		if full, ok := countryCodeMap[strings.ToUpper(last)]; ok {
			return full
		}
		if _, ok := knownCountries[strings.ToLower(last)]; ok {
			return titleCase(last)
		}
		// 尽力而为：最后一段大概率就是国家
		return last
	}

	// 无逗号：整串对照已知国家与常见缩写
	lower := strings.ToLower(location)
	switch lower {
	case "usa", "us":
		return "United States"
	case "uk":
		return "United Kingdom"
	}
	if _, ok := knownCountries[lower]; ok {
		return titleCase(location)
	}

	// 可能本身已是国家名，原样返回
	return location
}

// NormalizeURL 补全URL协议：无协议前缀https://，协议相对补https:
func NormalizeURL(url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	if strings.HasPrefix(url, "//") {
		return "https:" + url
	}
	return "https://" + url
}

// SplitLabels 对标签列表做分隔符拆分。
// 每个条目按labelSeparators顺序找首个命中的分隔符拆开，
// 全列表范围去重并保持首见顺序。对已拆分的列表幂等。
func SplitLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))

	appendUnique := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	for _, item := range labels {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		split := false
		for _, sep := range labelSeparators {
			if strings.Contains(item, sep) {
				for _, part := range strings.Split(item, sep) {
					appendUnique(part)
				}
				split = true
				break
			}
		}
		if !split {
			appendUnique(item)
		}
	}
	return out
}

// normalizeLanguages 清洗语言列表：language必须非空，
// proficiency默认空串，mother_tongue默认false
func (n *FieldNormalizer) normalizeLanguages(raw interface{}) []types.LanguageSkill {
	out := []types.LanguageSkill{}
	items, ok := raw.([]interface{})
	if !ok {
		return out
	}
	for _, item := range items {
		entry, ok := item.(map[string]interface{})
		if !ok {
			// 原始输出有时退化为纯字符串列表，容忍它
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, types.LanguageSkill{Language: strings.TrimSpace(s)})
			}
			continue
		}
		lang := stringField(entry, "language")
		if lang == "" {
			continue
		}
		mother := false
		if b, ok := entry["mother_tongue"].(bool); ok {
			mother = b
		}
		out = append(out, types.LanguageSkill{
			Language:     lang,
			Proficiency:  stringField(entry, "proficiency"),
			MotherTongue: mother,
		})
	}
	return out
}

// normalizeExpertiseDetails 清洗专长详情：
// 对键本身应用与expertise_areas相同的拆分（组合键共享详情载荷），
// 拆分后撞上已有键时逐字段合并，已有的非空值优先，
// 最后保证每个area都有一个（可能为空的）详情条目。
func (n *FieldNormalizer) normalizeExpertiseDetails(raw interface{}, areas []string) map[string]types.ExpertiseDetail {
	out := make(map[string]types.ExpertiseDetail, len(areas))

	if details, ok := raw.(map[string]interface{}); ok {
		// 按键的字典序遍历：两个组合键拆出同一目标键且载荷冲突时，
		// "先到者优先"的合并结果必须是确定的，不能随map遍历顺序漂移
		sortedKeys := make([]string, 0, len(details))
		for key := range details {
			sortedKeys = append(sortedKeys, key)
		}
		sort.Strings(sortedKeys)

		for _, key := range sortedKeys {
			detail := toExpertiseDetail(details[key])
			keys := SplitLabels([]string{key})
			if len(keys) == 0 {
				keys = []string{key}
			}
			for _, k := range keys {
				if existing, ok := out[k]; ok {
					out[k] = mergeDetail(existing, detail)
				} else {
					out[k] = detail
				}
			}
		}
	}

	for _, area := range areas {
		if _, ok := out[area]; !ok {
			out[area] = types.ExpertiseDetail{}
		}
	}
	return out
}

// mergeDetail 字段级合并，已有的非空值永远优先——
// 不允许用更贫瘠的数据覆盖更丰富的数据
func mergeDetail(existing, incoming types.ExpertiseDetail) types.ExpertiseDetail {
	if existing.WorkExperience == "" {
		existing.WorkExperience = incoming.WorkExperience
	}
	if existing.Projects == "" {
		existing.Projects = incoming.Projects
	}
	if existing.OtherInfo == "" {
		existing.OtherInfo = incoming.OtherInfo
	}
	return existing
}

func toExpertiseDetail(raw interface{}) types.ExpertiseDetail {
	entry, ok := raw.(map[string]interface{})
	if !ok {
		return types.ExpertiseDetail{}
	}
	return types.ExpertiseDetail{
		WorkExperience: stringField(entry, "work_experience"),
		Projects:       stringField(entry, "projects"),
		OtherInfo:      stringField(entry, "other_related_info"),
	}
}

// stringField 取出并去空白一个字符串字段，任何异常形态都归为空串
func stringField(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// intField 取出一个非负整数字段，JSON数字统一走float64
func intField(fields map[string]interface{}, key string) *int {
	switch v := fields[key].(type) {
	case float64:
		if v >= 0 {
			n := int(v)
			return &n
		}
	case int:
		if v >= 0 {
			n := v
			return &n
		}
	}
	return nil
}

// listField 取出字符串列表字段，仅保留去空白后非空的条目
func listField(fields map[string]interface{}, key string) []string {
	out := []string{}
	items, ok := fields[key].([]interface{})
	if !ok {
		return out
	}
	for _, item := range items {
		if s, ok := item.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// titleCase 简单的逐词首字母大写，够用于国家名
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
