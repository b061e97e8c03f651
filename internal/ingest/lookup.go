package ingest

import (
	"context"

	"cv-ingest-go/internal/dedup"
	"cv-ingest-go/internal/storage"
	"cv-ingest-go/internal/storage/models"
)

// sqlLookup 把MySQL候选人存储适配为身份判定所需的查找接口
type sqlLookup struct {
	db *storage.MySQL
}

// NewSQLLookup 创建基于MySQL的候选人查找
func NewSQLLookup(db *storage.MySQL) dedup.CandidateLookup {
	return &sqlLookup{db: db}
}

func (l *sqlLookup) FindByContentHash(ctx context.Context, contentHash string) (*dedup.ExistingCandidate, error) {
	rec, err := l.db.FindByContentHash(ctx, contentHash)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return toExisting(rec), nil
}

func (l *sqlLookup) FindBySoftID(ctx context.Context, softID string) ([]*dedup.ExistingCandidate, error) {
	recs, err := l.db.FindBySoftID(ctx, softID)
	if err != nil {
		return nil, err
	}
	return toExistingList(recs), nil
}

func (l *sqlLookup) FindByNameAndPhone(ctx context.Context, firstName, lastName string) ([]*dedup.ExistingCandidate, error) {
	recs, err := l.db.FindByNameLike(ctx, firstName, lastName)
	if err != nil {
		return nil, err
	}
	return toExistingList(recs), nil
}

func toExisting(rec *models.CandidateRecord) *dedup.ExistingCandidate {
	return &dedup.ExistingCandidate{
		SubmissionUUID:        rec.SubmissionUUID,
		FullName:              rec.FullName(),
		PhoneNumber:           rec.PhoneNumber,
		FileModifiedAt:        rec.FileModifiedAt,
		UploadedAt:            rec.UploadedAt,
		YearsOfExperience:     rec.YearsOfExperience,
		TotalExperienceMonths: rec.TotalExperienceMonths,
	}
}

func toExistingList(recs []models.CandidateRecord) []*dedup.ExistingCandidate {
	out := make([]*dedup.ExistingCandidate, 0, len(recs))
	for i := range recs {
		out = append(out, toExisting(&recs[i]))
	}
	return out
}
