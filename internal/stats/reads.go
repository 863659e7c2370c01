package stats

import (
	"fmt"
	"sort"

	"github.com/aria-lang/remora-go/internal/quality"
	"gonum.org/v1/gonum/stat"
)

// QualityDistribution counts reads per quality category.
type QualityDistribution struct {
	PoorCount      int
	LowCount       int
	MediumCount    int
	HighCount      int
	ExcellentCount int
	Total          int
}

// FromCategories creates distribution from list of categories.
func FromCategories(categories []quality.Category) *QualityDistribution {
	dist := &QualityDistribution{Total: len(categories)}
	for _, cat := range categories {
		switch cat {
		case quality.Poor:
			dist.PoorCount++
		case quality.Low:
			dist.LowCount++
		case quality.Medium:
			dist.MediumCount++
		case quality.High:
			dist.HighCount++
		case quality.Excellent:
			dist.ExcellentCount++
		}
	}
	return dist
}

// AcceptableRatio returns proportion of reads at or above medium quality.
func (d *QualityDistribution) AcceptableRatio() float64 {
	if d.Total == 0 {
		return 0.0
	}
	return float64(d.MediumCount+d.HighCount+d.ExcellentCount) / float64(d.Total)
}

// ReadSetStats summarizes a collection of reads.
type ReadSetStats struct {
	Count               int
	TotalBases          int
	MinLength           int
	MaxLength           int
	MeanLength          float64
	N50                 int
	MeanQuality         float64
	QualityDistribution *QualityDistribution
}

// ReadSummary is the per-read input to FromReads.
type ReadSummary struct {
	Length      int
	MeanQuality float64
	HasQuality  bool
}

// FromReads calculates statistics for a collection of reads.
func FromReads(reads []ReadSummary) (*ReadSetStats, error) {
	if len(reads) == 0 {
		return nil, fmt.Errorf("read list cannot be empty")
	}

	lengths := make([]int, len(reads))
	total := 0
	var quals []float64
	var cats []quality.Category
	for i, r := range reads {
		lengths[i] = r.Length
		total += r.Length
		if r.HasQuality {
			quals = append(quals, r.MeanQuality)
			cats = append(cats, quality.Categorize(r.MeanQuality))
		}
	}

	sort.Sort(sort.Reverse(sort.IntSlice(lengths)))
	s := &ReadSetStats{
		Count:               len(reads),
		TotalBases:          total,
		MinLength:           lengths[len(lengths)-1],
		MaxLength:           lengths[0],
		MeanLength:          float64(total) / float64(len(reads)),
		N50:                 n50(lengths, total),
		QualityDistribution: FromCategories(cats),
	}
	if len(quals) > 0 {
		s.MeanQuality = stat.Mean(quals, nil)
	}
	return s, nil
}

// n50 expects lengths sorted in descending order.
func n50(sortedDesc []int, total int) int {
	half := total / 2
	running := 0
	for _, l := range sortedDesc {
		running += l
		if running >= half {
			return l
		}
	}
	return sortedDesc[0]
}

func (s *ReadSetStats) String() string {
	return fmt.Sprintf(`ReadSetStats {
  count: %d
  total_bases: %d
  length range: %d - %d
  mean length: %.1f
  N50: %d
  mean quality: %.1f
  acceptable quality: %.1f%%
}`, s.Count, s.TotalBases, s.MinLength, s.MaxLength,
		s.MeanLength, s.N50, s.MeanQuality, s.QualityDistribution.AcceptableRatio()*100)
}
