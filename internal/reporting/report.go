package reporting

import (
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sharkemon/internal/catalog"
	"sharkemon/internal/discovery"
)

// createFile opens the report for writing.
var createFile = func(name string) (io.WriteCloser, error) {
	return os.Create(name)
}

// GenerateCollectionReport writes report_<timestamp>.html into dir listing
// every catalog descriptor and its discovery state. It returns the file
// path.
func GenerateCollectionReport(cat *catalog.Catalog, records []discovery.Record, dir string, now time.Time) (string, error) {
	timestamp := now.Format("20060102_150405")
	filename := filepath.Join(dir, fmt.Sprintf("report_%s.html", timestamp))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	file, err := createFile(filename)
	if err != nil {
		return "", err
	}

	byID := make(map[string]discovery.Record, len(records))
	var packets int64
	for _, r := range records {
		byID[r.ID] = r
		packets += r.PacketCount
	}
	descs := cat.Descriptors()
	found := 0
	for _, d := range descs {
		if _, ok := byID[d.ID]; ok {
			found++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Sharkemon Collection Report - %s</title>
    <style>
        body { font-family: sans-serif; margin: 20px; color: #333; }
        h1, h2 { color: #2c3e50; }
        table { width: 100%%; border-collapse: collapse; margin-bottom: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f2f2f2; }
        tr:nth-child(even) { background-color: #f9f9f9; }
        .summary { background: #eef; padding: 15px; border-radius: 5px; margin-bottom: 20px; }
        .missing { color: #999; }
        .rare { color: #2a7ae2; }
        .epic { color: #8e44ad; }
        .legendary { color: #d68910; font-weight: bold; }
    </style>
</head>
<body>
    <h1>Sharkemon Collection Report</h1>
    <div class="summary">
        <p><strong>Date:</strong> %s</p>
        <p><strong>Discovered:</strong> %d / %d</p>
        <p><strong>Matched Packets:</strong> %s</p>
    </div>

    <h2>Catalog</h2>
    <table>
        <thead>
            <tr>
                <th>#</th>
                <th>Name</th>
                <th>Rarity</th>
                <th>Signatures</th>
                <th>First Found</th>
                <th>Last Seen</th>
                <th>Packets</th>
            </tr>
        </thead>
        <tbody>
`, timestamp, now.Format(time.RFC1123), found, len(descs), formatCount(packets))

	for i, d := range descs {
		rec, ok := byID[d.ID]
		if !ok {
			fmt.Fprintf(&b, "            <tr class=\"missing\"><td>%03d</td><td>???</td><td>???</td><td>%s</td><td>-</td><td>-</td><td>0</td></tr>\n",
				i+1, html.EscapeString(signatures(d)))
			continue
		}
		fmt.Fprintf(&b, "            <tr><td>%03d</td><td><a href=\"%s\">%s</a></td><td class=\"%s\">%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
			i+1, html.EscapeString(d.ReferenceURL()), html.EscapeString(d.Name),
			d.Rarity, d.Rarity, html.EscapeString(signatures(d)),
			rec.DateFound.Format(time.DateTime), rec.DateLastSeen.Format(time.DateTime),
			formatCount(rec.PacketCount))
	}

	b.WriteString(`        </tbody>
    </table>
</body>
</html>`)

	if _, err := io.WriteString(file, b.String()); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", err
	}
	return filename, nil
}

func signatures(d catalog.Descriptor) string {
	parts := make([]string, len(d.Matches))
	for i, k := range d.Matches {
		parts[i] = k.String()
	}
	return strings.Join(parts, ", ")
}

// formatCount renders n with thousands separators.
func formatCount(n int64) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return "-" + formatCount(-n)
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}
