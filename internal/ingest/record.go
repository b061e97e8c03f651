package ingest

import (
	"fmt"
	"time"

	"cv-ingest-go/internal/constants"
	"cv-ingest-go/internal/storage"
	"cv-ingest-go/internal/storage/models"
	"cv-ingest-go/internal/types"

	"gorm.io/datatypes"
)

// buildCandidateRecord 把规范化后的记录草稿装配为数据库行。
// contentHash为空串时写NULL，空文本之间永不通过唯一索引相互匹配。
func buildCandidateRecord(msg *storage.ResumeUploadMessage, parsed *types.ParsedResume,
	contentHash, personSoftID, textObjectKey, status, errorMessage string,
	fileModifiedAt *time.Time) (*models.CandidateRecord, error) {

	var hashPtr *string
	if contentHash != "" {
		hashPtr = &contentHash
	}

	var dob *datatypes.Date
	if parsed.DateOfBirth != nil && *parsed.DateOfBirth != "" {
		t, err := time.Parse("2006-01-02", *parsed.DateOfBirth)
		if err == nil {
			d := datatypes.Date(t)
			dob = &d
		}
	}

	expertiseDetails, err := models.AnyToJSON(parsed.ExpertiseDetails)
	if err != nil {
		return nil, fmt.Errorf("序列化专长详情失败: %w", err)
	}
	languages, err := models.AnyToJSON(parsed.LanguagesSpoken)
	if err != nil {
		return nil, fmt.Errorf("序列化语言能力失败: %w", err)
	}

	uploadedAt := msg.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now().UTC()
	}

	return &models.CandidateRecord{
		SubmissionUUID: msg.SubmissionUUID,

		ContentHash:  hashPtr,
		PersonSoftID: personSoftID,

		FirstName:   parsed.FirstName,
		LastName:    parsed.LastName,
		Email:       parsed.Email,
		PhoneNumber: parsed.PhoneNumber,
		Location:    parsed.Location,
		DateOfBirth: dob,

		CurrentEmployer:          parsed.CurrentEmployer,
		YearsOfExperience:        parsed.YearsOfExperience,
		TotalExperienceMonths:    parsed.TotalExperienceMonths,
		Availability:             parsed.Availability,
		PreferredContractType:    parsed.PreferredContractType,
		PreferredWorkArrangement: parsed.PreferredWorkArrangement,

		LinkedinProfile:  parsed.LinkedinProfile,
		WebsitePortfolio: parsed.WebsitePortfolio,

		ExpertiseAreas:             models.SliceToJSON(parsed.ExpertiseAreas),
		ExpertiseDetails:           expertiseDetails,
		Sectors:                    models.SliceToJSON(parsed.Sectors),
		SkillKeywords:              models.SliceToJSON(parsed.SkillKeywords),
		LanguagesSpoken:            languages,
		ProfessionalCertifications: models.SliceToJSON(parsed.ProfessionalCertifications),
		ProfessionalAssociations:   models.SliceToJSON(parsed.ProfessionalAssociations),
		Publications:               models.SliceToJSON(parsed.Publications),

		References: parsed.References,
		Notes:      parsed.Notes,

		OriginalFilename:     msg.OriginalFilename,
		OriginalFilePathOSS:  msg.OriginalFileObjectKey,
		ExtractedTextPathOSS: textObjectKey,
		FileType:             msg.FileExt,
		FileModifiedAt:       fileModifiedAt,

		ProcessingStatus: status,
		ErrorMessage:     errorMessage,

		UploadedAt: uploadedAt,
	}, nil
}

// fieldUpdatesFromParsed 重新解析时的就地字段覆盖集合。
// 身份字段（主键、指纹、软标识）和文件信息不在其中。
func fieldUpdatesFromParsed(parsed *types.ParsedResume, status string) (map[string]interface{}, error) {
	expertiseDetails, err := models.AnyToJSON(parsed.ExpertiseDetails)
	if err != nil {
		return nil, fmt.Errorf("序列化专长详情失败: %w", err)
	}
	languages, err := models.AnyToJSON(parsed.LanguagesSpoken)
	if err != nil {
		return nil, fmt.Errorf("序列化语言能力失败: %w", err)
	}

	updates := map[string]interface{}{
		"first_name":                  parsed.FirstName,
		"last_name":                   parsed.LastName,
		"email":                       parsed.Email,
		"phone_number":                parsed.PhoneNumber,
		"location":                    parsed.Location,
		"current_employer":            parsed.CurrentEmployer,
		"years_of_experience":         parsed.YearsOfExperience,
		"total_experience_months":     parsed.TotalExperienceMonths,
		"availability":                parsed.Availability,
		"preferred_contract_type":     parsed.PreferredContractType,
		"preferred_work_arrangement":  parsed.PreferredWorkArrangement,
		"linkedin_profile":            parsed.LinkedinProfile,
		"website_portfolio":           parsed.WebsitePortfolio,
		"expertise_areas":             models.SliceToJSON(parsed.ExpertiseAreas),
		"expertise_details":           expertiseDetails,
		"sectors":                     models.SliceToJSON(parsed.Sectors),
		"skill_keywords":              models.SliceToJSON(parsed.SkillKeywords),
		"languages_spoken":            languages,
		"professional_certifications": models.SliceToJSON(parsed.ProfessionalCertifications),
		"professional_associations":   models.SliceToJSON(parsed.ProfessionalAssociations),
		"publications":                models.SliceToJSON(parsed.Publications),
		"references":                  parsed.References,
		"notes":                       parsed.Notes,
		"processing_status":           status,
	}
	if status != constants.StatusFailed {
		updates["error_message"] = ""
	}
	return updates, nil
}
