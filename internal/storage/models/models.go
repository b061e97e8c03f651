package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// CandidateRecord 候选人记录主表。
// ContentHash上的唯一索引是"查找->判定->提交"竞态的存储层兜底：
// 两个并发上传同时判定Keep时，第二个提交会撞唯一约束失败。
type CandidateRecord struct {
	SubmissionUUID string `gorm:"type:char(36);primaryKey"`

	// 重复检测指纹
	ContentHash  *string `gorm:"type:char(64);uniqueIndex:idx_candidates_content_hash"` // 指针以允许NULL（空文本无指纹）
	PersonSoftID string  `gorm:"type:char(16);index:idx_candidates_person_soft_id"`

	// 身份字段
	FirstName   string          `gorm:"type:varchar(100);index:idx_candidates_name,priority:1"`
	LastName    string          `gorm:"type:varchar(100);index:idx_candidates_name,priority:2"`
	Email       string          `gorm:"type:varchar(255);index:idx_candidates_email"`
	PhoneNumber string          `gorm:"type:varchar(50)"`
	Location    string          `gorm:"type:varchar(200)"` // 仅国家名
	DateOfBirth *datatypes.Date `gorm:"type:date"`

	// 职业字段
	CurrentEmployer          string `gorm:"type:varchar(200)"`
	YearsOfExperience        *int   `gorm:"type:int;index:idx_candidates_years_exp"`
	TotalExperienceMonths    *int   `gorm:"type:int"`
	Availability             string `gorm:"type:varchar(100)"`
	PreferredContractType    string `gorm:"type:varchar(100)"`
	PreferredWorkArrangement string `gorm:"type:varchar(100)"`

	LinkedinProfile  string `gorm:"type:varchar(500)"`
	WebsitePortfolio string `gorm:"type:varchar(500)"`

	// 集合字段以JSON列存储
	ExpertiseAreas             datatypes.JSON `gorm:"type:json"`
	ExpertiseDetails           datatypes.JSON `gorm:"type:json"`
	Sectors                    datatypes.JSON `gorm:"type:json"`
	SkillKeywords              datatypes.JSON `gorm:"type:json"`
	LanguagesSpoken            datatypes.JSON `gorm:"type:json"`
	ProfessionalCertifications datatypes.JSON `gorm:"type:json"`
	ProfessionalAssociations   datatypes.JSON `gorm:"type:json"`
	Publications               datatypes.JSON `gorm:"type:json"`

	References string `gorm:"type:text"`
	Notes      string `gorm:"type:text"`

	// 文件信息
	OriginalFilename     string `gorm:"type:varchar(255)"`
	OriginalFilePathOSS  string `gorm:"type:varchar(1024)"`
	ExtractedTextPathOSS string `gorm:"type:varchar(1024)"`
	FileType             string `gorm:"type:varchar(10)"`
	// 文件元数据中的修改时间，存储层无法提供时为NULL
	FileModifiedAt *time.Time `gorm:"type:datetime(6);index:idx_candidates_file_modified_at"`

	// 处理状态
	ProcessingStatus string `gorm:"type:varchar(50);default:'pending';index:idx_candidates_processing_status"`
	ErrorMessage     string `gorm:"type:text"`

	UploadedAt time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_candidates_uploaded_at"`
	CreatedAt  time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt  time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (CandidateRecord) TableName() string {
	return "candidate_records"
}

// FullName 返回拼接后的全名
func (c *CandidateRecord) FullName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	default:
		return c.LastName
	}
}

// ContentHashValue 取出指纹值，NULL归一为空串
func (c *CandidateRecord) ContentHashValue() string {
	if c.ContentHash == nil {
		return ""
	}
	return *c.ContentHash
}

// SliceToJSON Helper function to convert []string to datatypes.JSON
func SliceToJSON(items []string) datatypes.JSON {
	if items == nil {
		items = []string{}
	}
	bytes, _ := json.Marshal(items)
	return bytes
}

// AnyToJSON Helper function to marshal arbitrary values to datatypes.JSON
func AnyToJSON(v interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}
