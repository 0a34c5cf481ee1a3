package extraction

import "math"

type Quality int

const QualityNone Quality = -1

const (
	QualityAwful Quality = iota
	QualityPoor
	QualityNormal
	QualityGood
	QualityExcellent
	QualityMasterwork
	QualityLegendary
)

var qualityNames = [...]string{"AWFUL", "POOR", "NORMAL", "GOOD", "EXCELLENT", "MASTERWORK", "LEGENDARY"}

func (q Quality) String() string {
	if q < 0 || int(q) >= len(qualityNames) {
		return "NONE"
	}
	return qualityNames[q]
}

// GenerateTraderQuality draws the quality tier of a trader-grade item: a
// quarter are Normal, the rest spread around Normal/Good and never reach
// Masterwork or fall to Awful.
func GenerateTraderQuality(r Rand) Quality {
	if r.Float64() < 0.25 {
		return QualityNormal
	}
	v := 2.5 + r.NormFloat64()*0.84
	v = math.Max(0, math.Min(v, float64(QualityExcellent)+0.99))
	q := Quality(v)
	if q == QualityAwful {
		q = QualityPoor
	}
	return q
}
