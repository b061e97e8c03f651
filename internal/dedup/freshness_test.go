package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func testScorer() *Scorer {
	return NewScorer(DefaultWeights(), func() time.Time { return fixedNow })
}

func daysAgo(n int) *time.Time {
	t := fixedNow.AddDate(0, 0, -n)
	return &t
}

func intPtr(n int) *int { return &n }

func TestScoreFileModifiedDominates(t *testing.T) {
	s := testScorer()

	// 文件修改时间较新但上传较早、经验为零的记录，
	// 应胜过修改时间未知、昨天上传且经验丰富的记录
	recent := s.Score(Scorable{
		FileModifiedAt: daysAgo(10),
		UploadedAt:     *daysAgo(300),
	})
	unknownModified := s.Score(Scorable{
		UploadedAt:            *daysAgo(1),
		YearsOfExperience:     intPtr(30),
		TotalExperienceMonths: intPtr(400),
	})

	assert.Greater(t, recent, unknownModified, "文件修改时间项应主导新鲜度排序")
}

func TestScoreNewerModifiedWins(t *testing.T) {
	s := testScorer()

	newer := s.Score(Scorable{FileModifiedAt: daysAgo(5), UploadedAt: *daysAgo(5)})
	older := s.Score(Scorable{FileModifiedAt: daysAgo(50), UploadedAt: *daysAgo(5)})

	assert.Greater(t, newer, older, "修改时间更新的记录应得更高分")
}

func TestScoreExperienceBreaksTies(t *testing.T) {
	s := testScorer()

	base := Scorable{FileModifiedAt: daysAgo(10), UploadedAt: *daysAgo(10)}
	experienced := base
	experienced.YearsOfExperience = intPtr(12)
	experienced.TotalExperienceMonths = intPtr(150)

	assert.Greater(t, s.Score(experienced), s.Score(base), "时间项相同时经验应作为平局判定")
}

func TestScoreCapsApplied(t *testing.T) {
	s := testScorer()

	// 经验项超过上限后不再增长
	a := s.Score(Scorable{UploadedAt: fixedNow, YearsOfExperience: intPtr(100)})
	b := s.Score(Scorable{UploadedAt: fixedNow, YearsOfExperience: intPtr(200)})
	assert.Equal(t, a, b, "经验年限项应被上限截断")
}

func TestScoreNeverNegative(t *testing.T) {
	s := testScorer()

	ancient := s.Score(Scorable{
		FileModifiedAt: daysAgo(100000),
		UploadedAt:     *daysAgo(100000),
	})
	assert.GreaterOrEqual(t, ancient, 0, "久远的记录得分不应为负")

	empty := s.Score(Scorable{})
	assert.Equal(t, 0, empty, "全空记录得分应为0")
}
