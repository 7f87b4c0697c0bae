package scoring

import (
	"unicode/utf8"

	"github.com/admoderation/platform/pkg/advertisement"
)

var FeatureNames = []string{"is_verified_seller", "images_qty", "description_length", "category"}

// Features maps a listing onto the model's [0,1] feature scale.
func Features(ad advertisement.Snapshot) []float64 {
	verified := 0.0
	if ad.IsVerifiedSeller {
		verified = 1
	}
	return []float64{
		verified,
		float64(ad.ImagesQty) / 10.0,
		float64(utf8.RuneCountInString(ad.Description)) / 1000.0,
		float64(ad.Category) / 100.0,
	}
}
