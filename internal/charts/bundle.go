package charts

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// WriteBundle packs artifacts into a zip archive written to w. PNG data is
// stored as-is; SVG is deflated.
func WriteBundle(w io.Writer, artifacts []Artifact, modified time.Time) error {
	zw := zip.NewWriter(w)
	for _, a := range artifacts {
		method := zip.Deflate
		if a.Format == FormatPNG {
			method = zip.Store
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     a.FileName(),
			Method:   method,
			Modified: modified,
		})
		if err != nil {
			return fmt.Errorf("adding %s to bundle: %w", a.FileName(), err)
		}
		if _, err := fw.Write(a.Data); err != nil {
			return fmt.Errorf("writing %s to bundle: %w", a.FileName(), err)
		}
	}
	return zw.Close()
}

// BundleFileName names a chart bundle download.
func BundleFileName(location string, at time.Time) string {
	safe := strings.NewReplacer("/", "_", "\\", "_").Replace(strings.TrimSpace(location))
	return fmt.Sprintf("weather_charts_%s_%s.zip", safe, at.Format("20060102"))
}
