package ingest

import (
	"testing"
	"time"

	"cv-ingest-go/internal/constants"
	"cv-ingest-go/internal/storage"
	"cv-ingest-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadMessage() *storage.ResumeUploadMessage {
	modTime := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &storage.ResumeUploadMessage{
		SubmissionUUID:        "11111111-2222-3333-4444-555555555555",
		OriginalFileObjectKey: "resume/11111111-2222-3333-4444-555555555555/original.pdf",
		OriginalFilename:      "john_doe.pdf",
		FileExt:               ".pdf",
		FileModifiedAt:        &modTime,
		UploadedAt:            time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestBuildCandidateRecord(t *testing.T) {
	msg := uploadMessage()
	dob := "1990-05-20"
	parsed := &types.ParsedResume{
		FirstName:      "John",
		LastName:       "Doe",
		Email:          "john@example.com",
		PhoneNumber:    "+1-212-555-0100",
		DateOfBirth:    &dob,
		ExpertiseAreas: []string{"Python", "Django"},
		ExpertiseDetails: map[string]types.ExpertiseDetail{
			"Python": {WorkExperience: "5 years"},
		},
		LanguagesSpoken: []types.LanguageSkill{{Language: "English", Proficiency: "Fluent"}},
	}

	rec, err := buildCandidateRecord(msg, parsed, "hash123", "softid456", "resume/x/extracted_text.txt",
		constants.StatusCompleted, "", msg.FileModifiedAt)
	require.NoError(t, err)

	assert.Equal(t, msg.SubmissionUUID, rec.SubmissionUUID)
	require.NotNil(t, rec.ContentHash, "非空指纹应写入指针")
	assert.Equal(t, "hash123", *rec.ContentHash)
	assert.Equal(t, "softid456", rec.PersonSoftID)
	assert.Equal(t, "John", rec.FirstName)
	require.NotNil(t, rec.DateOfBirth, "合法出生日期应转换")
	assert.Equal(t, constants.StatusCompleted, rec.ProcessingStatus)
	assert.Equal(t, msg.UploadedAt, rec.UploadedAt)
	assert.Equal(t, "resume/x/extracted_text.txt", rec.ExtractedTextPathOSS, "提取文本的归档位置应随记录保存")
	require.NotNil(t, rec.FileModifiedAt)
	assert.NotEmpty(t, rec.ExpertiseDetails, "专长详情应序列化为JSON")
	assert.NotEmpty(t, rec.LanguagesSpoken)
}

func TestBuildCandidateRecordEmptyHashBecomesNull(t *testing.T) {
	rec, err := buildCandidateRecord(uploadMessage(), types.FallbackResume(), "", "softid456", "",
		constants.StatusFailed, "extraction failed", nil)
	require.NoError(t, err)

	assert.Nil(t, rec.ContentHash, "空指纹应写NULL，空文本之间不应通过唯一索引相互匹配")
	assert.Equal(t, constants.StatusFailed, rec.ProcessingStatus)
	assert.Equal(t, "extraction failed", rec.ErrorMessage)
	assert.Nil(t, rec.FileModifiedAt)
}

func TestBuildCandidateRecordUploadedAtFallback(t *testing.T) {
	msg := uploadMessage()
	msg.UploadedAt = time.Time{}

	before := time.Now().UTC()
	rec, err := buildCandidateRecord(msg, types.FallbackResume(), "h", "s", "", constants.StatusCompleted, "", nil)
	require.NoError(t, err)

	assert.False(t, rec.UploadedAt.IsZero(), "消息缺少上传时间时应回退为当前时间")
	assert.True(t, !rec.UploadedAt.Before(before), "回退时间应不早于调用时刻")
}

func TestFieldUpdatesFromParsedExcludesIdentity(t *testing.T) {
	parsed := &types.ParsedResume{FirstName: "Amy", LastName: "Chen"}

	updates, err := fieldUpdatesFromParsed(parsed, constants.StatusCompleted)
	require.NoError(t, err)

	assert.Equal(t, "Amy", updates["first_name"])
	assert.Equal(t, constants.StatusCompleted, updates["processing_status"])
	assert.Equal(t, "", updates["error_message"], "成功状态应清除历史错误信息")

	// 主键、指纹与文件信息不参与就地覆盖
	assert.NotContains(t, updates, "submission_uuid")
	assert.NotContains(t, updates, "content_hash")
	assert.NotContains(t, updates, "person_soft_id")
	assert.NotContains(t, updates, "original_file_path_oss")
	assert.NotContains(t, updates, "uploaded_at")
}

func TestFieldUpdatesFromParsedKeepsErrorOnFailure(t *testing.T) {
	updates, err := fieldUpdatesFromParsed(types.FallbackResume(), constants.StatusFailed)
	require.NoError(t, err)

	assert.NotContains(t, updates, "error_message", "失败状态下错误信息由调用方单独设置")
	assert.Equal(t, constants.StatusFailed, updates["processing_status"])
}
