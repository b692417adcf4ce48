package imaging

import (
	"bytes"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// CaptureMeta holds EXIF metadata extracted from a photo, when present.
// All fields are best-effort: a missing or corrupt EXIF block leaves the
// zero value.
type CaptureMeta struct {
	TakenAt   *time.Time
	Latitude  *float64
	Longitude *float64
}

// ExtractMeta reads EXIF capture metadata from raw image bytes.
// Phone cameras stamp the capture time and GPS position; both are useful
// audit evidence on an inspection photo. Failures are swallowed — EXIF is
// optional enrichment, never a reason to reject a capture.
func ExtractMeta(data []byte) CaptureMeta {
	var meta CaptureMeta

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return meta
	}

	if t, err := x.DateTime(); err == nil {
		meta.TakenAt = &t
	}

	if lat, lon, err := x.LatLong(); err == nil {
		meta.Latitude = &lat
		meta.Longitude = &lon
	}

	return meta
}
