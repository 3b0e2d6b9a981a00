package profile

import (
	"txfeatures/internal/feature"
)

// validate checks every record of a group before any of them is written.
func validate(records []*feature.Record) (int64, error) {
	for _, rec := range records {
		if rec.Defect != nil {
			return rec.ID, feature.Malformed("%v", rec.Defect)
		}
		if rec.Timestamp.IsZero() {
			return rec.ID, feature.Malformed("missing timestamp")
		}
		if rec.Amount.IsNegative() {
			return rec.ID, feature.Malformed("negative amount %s", rec.Amount.String())
		}
	}
	return 0, nil
}
