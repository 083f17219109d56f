package ports

import (
	"io"

	"loopscan/domain/run"
)

// ReportExporter writes a report in an external format
type ReportExporter interface {
	Format() string
	Export(w io.Writer, report *run.Report) error
}
