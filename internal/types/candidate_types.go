package types

import "time"

// ExtractionState 表示LLM原始输出的解析状态
type ExtractionState string

const (
	// ExtractionParsed 原始输出直接解析成功
	ExtractionParsed ExtractionState = "PARSED"
	// ExtractionRepaired 原始输出经修复后解析成功
	ExtractionRepaired ExtractionState = "REPAIRED"
	// ExtractionUnparseable 修复后仍无法解析
	ExtractionUnparseable ExtractionState = "UNPARSEABLE"
)

// RawExtraction LLM返回的原始结构化文本及其解析状态。
// 所有消费方必须通过FieldNormalizer获取字段，禁止直接信任Fields。
type RawExtraction struct {
	// 原始文本（未经修复）
	RawText string
	// 解析状态
	State ExtractionState
	// 解析出的动态字段，State为UNPARSEABLE时为nil
	Fields map[string]interface{}
	// 修复/解析失败时的错误描述
	Err string
}

// LanguageSkill 语言能力条目
type LanguageSkill struct {
	Language     string `json:"language"`
	Proficiency  string `json:"proficiency"`
	MotherTongue bool   `json:"mother_tongue"`
}

// ExpertiseDetail 单个专长领域的详细信息，三个字段均为自由文本块
type ExpertiseDetail struct {
	WorkExperience string `json:"work_experience"`
	Projects       string `json:"projects"`
	OtherInfo      string `json:"other_related_info"`
}

// IsEmpty 判断详情是否完全为空
func (d ExpertiseDetail) IsEmpty() bool {
	return d.WorkExperience == "" && d.Projects == "" && d.OtherInfo == ""
}

// ParsedResume 经过字段规范化后的候选人记录草稿。
// 字符串字段永远非null（缺失即空串），数值与日期字段缺失时为nil。
type ParsedResume struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	// Location 仅保留国家名
	Location    string  `json:"location"`
	DateOfBirth *string `json:"date_of_birth"`

	CurrentEmployer          string `json:"current_employer"`
	YearsOfExperience        *int   `json:"years_of_experience"`
	TotalExperienceMonths    *int   `json:"total_experience_months"`
	Availability             string `json:"availability"`
	PreferredContractType    string `json:"preferred_contract_type"`
	PreferredWorkArrangement string `json:"preferred_work_arrangement"`

	LinkedinProfile  string `json:"linkedin_profile"`
	WebsitePortfolio string `json:"website_portfolio"`

	ExpertiseAreas   []string                   `json:"expertise_areas"`
	ExpertiseDetails map[string]ExpertiseDetail `json:"expertise_details"`
	Sectors          []string                   `json:"sectors"`
	SkillKeywords    []string                   `json:"skill_keywords"`

	LanguagesSpoken            []LanguageSkill `json:"languages_spoken"`
	ProfessionalCertifications []string        `json:"professional_certifications"`
	ProfessionalAssociations   []string        `json:"professional_associations"`
	Publications               []string        `json:"publications"`

	References string `json:"references"`
	Notes      string `json:"notes"`
}

// FullName 返回拼接后的全名
func (p *ParsedResume) FullName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	default:
		return p.LastName
	}
}

// FallbackResume 返回AI解析失败时使用的空白记录。
// Notes中保留人工复核提示，其余字段全部为安全默认值。
func FallbackResume() *ParsedResume {
	return &ParsedResume{
		ExpertiseAreas:             []string{},
		ExpertiseDetails:           map[string]ExpertiseDetail{},
		Sectors:                    []string{},
		SkillKeywords:              []string{},
		LanguagesSpoken:            []LanguageSkill{},
		ProfessionalCertifications: []string{},
		ProfessionalAssociations:   []string{},
		Publications:               []string{},
		Notes:                      "AI parsing failed - manual review required",
	}
}

// DecisionOutcome 重复判定的终态
type DecisionOutcome string

const (
	// DecisionIdentical 内容完全相同，丢弃新文件
	DecisionIdentical DecisionOutcome = "IDENTICAL"
	// DecisionReplace 同一人更新的简历，删除旧记录后入库
	DecisionReplace DecisionOutcome = "REPLACE"
	// DecisionOlder 同一人更旧的简历，丢弃新文件
	DecisionOlder DecisionOutcome = "OLDER"
	// DecisionKeep 全新候选人，直接入库
	DecisionKeep DecisionOutcome = "KEEP"
)

// DuplicateDecision 重复判定结果，每次解析调用恰好产生一个
type DuplicateDecision struct {
	Outcome DecisionOutcome
	// 冲突的已有记录，Keep时为nil
	ConflictingUUID string
	Message         string
}

// IncomingCandidate 身份判定的输入：规范化后的记录加上文件元数据
type IncomingCandidate struct {
	Parsed *ParsedResume
	// 规范化原文的内容指纹，原文为空时为空串
	ContentHash string
	// 人员软标识，永不为空
	PersonSoftID string
	// 文件修改时间，存储层无法提供时为nil
	FileModifiedAt *time.Time
	// 上传时间
	UploadedAt time.Time
}
