// Package chart renders the persisted price history into a self-contained
// HTML page with an interactive line chart. The transformation is pure:
// history in, markup out.
package chart

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"html/template"
	"os"
	"sort"
	"strings"

	"mkessler/pricewatch/internal/watch"
)

type point struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

type dataset struct {
	Label       string  `json:"label"`
	Data        []point `json:"data"`
	BorderColor string  `json:"borderColor"`
	Tension     float64 `json:"tension"`
}

type view struct {
	Labels   []string
	Datasets template.JS
}

// Render produces the chart page for the given history. Items are sorted by
// name and observations by time, so the output is deterministic for a given
// history.
func Render(series map[string][]watch.Observation) (string, error) {
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	datasets := make([]dataset, 0, len(names))
	for _, name := range names {
		obs := append([]watch.Observation(nil), series[name]...)
		sort.Slice(obs, func(i, j int) bool { return obs[i].Timestamp.Before(obs[j].Timestamp) })

		points := make([]point, 0, len(obs))
		for _, o := range obs {
			points = append(points, point{X: o.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"), Y: o.Price})
		}
		if len(points) == 0 {
			continue
		}

		datasets = append(datasets, dataset{
			Label:       name,
			Data:        points,
			BorderColor: colorFor(name),
			Tension:     0.3,
		})
	}

	encoded, err := json.Marshal(datasets)
	if err != nil {
		return "", fmt.Errorf("chart: encode datasets: %w", err)
	}

	labels := make([]string, 0, len(datasets))
	for _, ds := range datasets {
		labels = append(labels, ds.Label)
	}

	tpl, err := template.New("chart").Parse(chartTemplate)
	if err != nil {
		return "", fmt.Errorf("chart: parse template: %w", err)
	}

	var b strings.Builder
	if err := tpl.Execute(&b, view{Labels: labels, Datasets: template.JS(encoded)}); err != nil {
		return "", fmt.Errorf("chart: render: %w", err)
	}
	return b.String(), nil
}

// WriteFile renders the chart page and writes it to path.
func WriteFile(path string, series map[string][]watch.Observation) error {
	html, err := Render(series)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(html), 0o644)
}

// colorFor derives a stable line color from the item name so reruns over
// the same history produce identical pages.
func colorFor(name string) string {
	h := fnv.New32a()
	h.Write([]byte(name))
	v := h.Sum32()
	r := (v >> 16) % 200
	g := (v >> 8) % 200
	b := v % 200
	return fmt.Sprintf("rgb(%d, %d, %d)", r, g, b)
}

const chartTemplate = `<!DOCTYPE html>
<html>
<head>
  <title>Price History Chart</title>
  <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
  <script src="https://cdn.jsdelivr.net/npm/chartjs-adapter-date-fns"></script>
  <style>
    body { font-family: sans-serif; padding: 2rem; background: #f4f4f4; }
    canvas { background: #fff; border-radius: 8px; box-shadow: 0 0 10px rgba(0,0,0,0.1); }
    select { font-size: 1rem; padding: 0.5rem; margin-bottom: 1rem; }
  </style>
</head>
<body>
  <h1>Price History</h1>
  <label for="datasetSelect">Filter by item:</label>
  <select id="datasetSelect">
    <option value="All">All</option>
    {{range .Labels}}<option value="{{.}}">{{.}}</option>
    {{end}}
  </select>

  <canvas id="chart" width="1200" height="600"></canvas>

  <script>
    const allDatasets = {{.Datasets}};
    const ctx = document.getElementById('chart').getContext('2d');

    let chart = new Chart(ctx, {
      type: 'line',
      data: { datasets: allDatasets },
      options: {
        parsing: { xAxisKey: 'x', yAxisKey: 'y' },
        scales: {
          x: {
            type: 'time',
            time: {
              tooltipFormat: 'PPpp',
              displayFormats: { hour: 'MMM d, h a', day: 'MMM d' }
            },
            title: { display: true, text: 'Time' }
          },
          y: {
            title: { display: true, text: 'Price (USD)' }
          }
        }
      }
    });

    document.getElementById('datasetSelect').addEventListener('change', (e) => {
      const value = e.target.value;
      chart.data.datasets = value === 'All'
        ? allDatasets
        : allDatasets.filter(ds => ds.label === value);
      chart.update();
    });
  </script>
</body>
</html>
`
