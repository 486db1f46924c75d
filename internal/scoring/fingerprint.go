package scoring

import (
	"math"
	"time"

	"github.com/thebtf/campus-drift/pkg/models"
)

const (
	// spontaneousMaxMinutes is the time requirement below which an accepted
	// drift counts as spontaneous.
	spontaneousMaxMinutes = 30

	// exploratoryTypeTarget is the number of distinct accepted drift types
	// that saturates the exploratory axis.
	exploratoryTypeTarget = 6.0

	// timingFlexibilityPlaceholder stands in for schedule-spread analysis,
	// which needs accepted-drift timestamps across weeks.
	timingFlexibilityPlaceholder = 0.65
)

// DefaultAxes are the population priors used for students with no history.
var DefaultAxes = models.FingerprintAxes{
	CrossDepartmental: 20,
	Spontaneous:       30,
	Social:            25,
	Creative:          15,
	Exploratory:       20,
	TimingFlexibility: 40,
}

// Time-of-day buckets, in tie-break order.
var timeOfDayBuckets = []struct {
	label     string
	startHour int
	endHour   int
}{
	{"Morning (8AM-12PM)", 0, 12},
	{models.DefaultBestTimeOfDay, 12, 14},
	{"Afternoon (2-5PM)", 14, 17},
	{"Evening (5PM+)", 17, 24},
}

// FingerprintBuilder derives a serendipity fingerprint from drift history.
type FingerprintBuilder struct {
	config *models.ScoringConfig
}

// NewFingerprintBuilder creates a new fingerprint builder.
// If config is nil, uses the default configuration.
func NewFingerprintBuilder(config *models.ScoringConfig) *FingerprintBuilder {
	if config == nil {
		config = models.DefaultScoringConfig()
	}
	return &FingerprintBuilder{config: config}
}

// DefaultFingerprint returns the population baseline axes.
func (b *FingerprintBuilder) DefaultFingerprint() models.FingerprintAxes {
	return DefaultAxes
}

// Build computes the six axis scores from the full drift history.
//
// Every ratio axis is Laplace smoothed with λ (default 2):
//
//	cross-departmental = meaningful crossing drifts / (meaningful + λ)
//	spontaneous        = accepted drifts under 30 min / (total + λ)
//	social             = meaningful social drifts / (meaningful + λ)
//	creative           = meaningful creative drifts / (meaningful + λ)
//	exploratory        = min(distinct accepted types / 6, 1)
//	timing-flexibility = 0.65 placeholder
//
// A meaningful drift has an outcome marked interesting. Each axis is scaled
// to an integer 0-100.
func (b *FingerprintBuilder) Build(history []*models.DriftNudge) models.FingerprintAxes {
	if len(history) == 0 {
		return b.DefaultFingerprint()
	}

	var meaningful, crossDept, spontaneous, social, creative int
	acceptedTypes := make(map[models.DriftType]struct{})

	for _, d := range history {
		if d == nil {
			continue
		}
		if d.Status == models.DriftStatusAccepted {
			acceptedTypes[d.Type] = struct{}{}
			if d.TimeRequiredMinutes < spontaneousMaxMinutes {
				spontaneous++
			}
		}
		if !d.IsMeaningful() {
			continue
		}
		meaningful++
		if d.CrossedDepartment || d.Outcome.HasTag(models.TagCrossDepartmental, models.TagCrossDept) {
			crossDept++
		}
		if d.Outcome.HasTag(models.TagConnection, models.TagCollaboration, models.TagSocial) {
			social++
		}
		if d.Outcome.HasTag(models.TagCreative) {
			creative++
		}
	}

	meaningfulDenom := b.smoothed(meaningful)
	totalDenom := b.smoothed(len(history))
	exploratory := math.Min(float64(len(acceptedTypes))/exploratoryTypeTarget, 1.0)

	return models.FingerprintAxes{
		CrossDepartmental: axisScore(float64(crossDept) / meaningfulDenom),
		Spontaneous:       axisScore(float64(spontaneous) / totalDenom),
		Social:            axisScore(float64(social) / meaningfulDenom),
		Creative:          axisScore(float64(creative) / meaningfulDenom),
		Exploratory:       axisScore(exploratory),
		TimingFlexibility: axisScore(timingFlexibilityPlaceholder),
	}
}

// BuildProfile rebuilds the full fingerprint for a student: axes plus
// aggregate counters and best-performing drift type and time of day.
func (b *FingerprintBuilder) BuildProfile(studentID string, history []*models.DriftNudge, now time.Time) *models.SerendipityFingerprint {
	fp := &models.SerendipityFingerprint{
		StudentID:     studentID,
		Axes:          b.Build(history),
		BestDriftType: models.DriftTypeCanteen,
		BestTimeOfDay: models.DefaultBestTimeOfDay,
		LastUpdated:   now,
	}

	typeCounts := make(map[models.DriftType]int)
	bucketCounts := make([]int, len(timeOfDayBuckets))
	for _, d := range history {
		if d == nil {
			continue
		}
		fp.TotalDrifts++
		if !d.IsMeaningful() {
			continue
		}
		fp.MeaningfulDrifts++
		typeCounts[d.Type]++
		bucketCounts[timeOfDayBucket(d.CreatedAt.Hour())]++
	}

	if fp.TotalDrifts > 0 {
		fp.MeaningfulRate = Round(float64(fp.MeaningfulDrifts)/float64(fp.TotalDrifts), 2)
	}

	best := 0
	for _, t := range models.AllDriftTypes {
		if typeCounts[t] > best {
			best = typeCounts[t]
			fp.BestDriftType = t
		}
	}

	best = 0
	for i, n := range bucketCounts {
		if n > best {
			best = n
			fp.BestTimeOfDay = timeOfDayBuckets[i].label
		}
	}

	return fp
}

// smoothed returns count + λ, never below one.
func (b *FingerprintBuilder) smoothed(count int) float64 {
	return math.Max(float64(count)+b.config.LaplaceSmoothing, 1)
}

// axisScore scales a ratio to an integer in [0,100].
func axisScore(ratio float64) int {
	score := int(math.Round(ratio * 100))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func timeOfDayBucket(hour int) int {
	for i, bucket := range timeOfDayBuckets {
		if hour >= bucket.startHour && hour < bucket.endHour {
			return i
		}
	}
	return len(timeOfDayBuckets) - 1
}
