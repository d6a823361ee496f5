// Package chart builds QuickChart links for numeric series. The functions are
// pure: nothing is fetched, the chart is rendered when the link is opened.
package chart

import (
	"net/url"

	"github.com/goccy/go-json"
)

// BaseURL is the QuickChart render endpoint.
const BaseURL = "https://quickchart.io/chart"

type dataset struct {
	Label string  `json:"label,omitempty"`
	Data  []int64 `json:"data"`
}

type chartData struct {
	Labels   []string  `json:"labels"`
	Datasets []dataset `json:"datasets"`
}

type chartConfig struct {
	Type string    `json:"type"`
	Data chartData `json:"data"`
}

// BarURL returns a bar chart link with one labelled dataset.
func BarURL(labels []string, values []int64, label string) (string, error) {
	return build(chartConfig{
		Type: "bar",
		Data: chartData{Labels: labels, Datasets: []dataset{{Label: label, Data: values}}},
	})
}

// PieURL returns a pie chart link.
func PieURL(labels []string, values []int64) (string, error) {
	return build(chartConfig{
		Type: "pie",
		Data: chartData{Labels: labels, Datasets: []dataset{{Data: values}}},
	})
}

func build(cfg chartConfig) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("c", string(raw))
	return BaseURL + "?" + q.Encode(), nil
}
