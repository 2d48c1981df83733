package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/ieee0824/vqdigit/decoder"
)

var (
	accent      = lipgloss.Color("#00ff9f")
	dim         = lipgloss.Color("#6e7681")
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).Align(lipgloss.Right)
	cellStyle   = lipgloss.NewStyle().Align(lipgloss.Right)
	hitStyle    = lipgloss.NewStyle().Bold(true).Align(lipgloss.Right)
	mutedStyle  = lipgloss.NewStyle().Foreground(dim).Align(lipgloss.Right)
	noteStyle   = lipgloss.NewStyle().Foreground(dim)
)

type classReport struct {
	Label    string  `yaml:"label" json:"label"`
	Correct  int     `yaml:"correct" json:"correct"`
	Total    int     `yaml:"total" json:"total"`
	Accuracy float64 `yaml:"accuracy" json:"accuracy"`
}

type evalReport struct {
	ModelID   string        `yaml:"model_id,omitempty" json:"model_id,omitempty"`
	Correct   int           `yaml:"correct" json:"correct"`
	Total     int           `yaml:"total" json:"total"`
	Accuracy  float64       `yaml:"accuracy" json:"accuracy"`
	Classes   []classReport `yaml:"classes" json:"classes"`
	Confusion [][]int       `yaml:"confusion" json:"confusion"` // rows are reference labels
}

func newEvalReport(modelID string, ev *decoder.Evaluation) evalReport {
	r := evalReport{
		ModelID:   modelID,
		Correct:   ev.Correct,
		Total:     ev.Total,
		Accuracy:  ev.Accuracy(),
		Classes:   make([]classReport, len(ev.Labels)),
		Confusion: ev.Confusion,
	}
	for i, l := range ev.Labels {
		total := 0
		for _, n := range ev.Confusion[i] {
			total += n
		}
		r.Classes[i] = classReport{
			Label:    l,
			Correct:  ev.Confusion[i][i],
			Total:    total,
			Accuracy: ev.ClassAccuracy(i),
		}
	}
	return r
}

// writeReport encodes v in the requested format. render draws the table form.
func writeReport(w io.Writer, format string, v any, render func() string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		_, err := fmt.Fprintln(w, render())
		return err
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// column renders cells right-aligned to the widest one.
func column(cells []string, styles []lipgloss.Style) string {
	width := 0
	for _, c := range cells {
		width = max(width, lipgloss.Width(c))
	}
	rows := make([]string, len(cells))
	for i, c := range cells {
		rows[i] = styles[i].Width(width + 2).Render(c)
	}
	return lipgloss.JoinVertical(lipgloss.Right, rows...)
}

// renderEval draws the confusion matrix with per-class accuracy.
func (r evalReport) renderEval() string {
	n := len(r.Classes)
	cols := make([]string, 0, n+2)

	ref := []string{"ref\\hyp"}
	refStyles := []lipgloss.Style{headerStyle}
	for _, c := range r.Classes {
		ref = append(ref, c.Label)
		refStyles = append(refStyles, headerStyle)
	}
	cols = append(cols, column(ref, refStyles))

	for j, c := range r.Classes {
		cells := []string{c.Label}
		styles := []lipgloss.Style{headerStyle}
		for i := range r.Classes {
			count := r.Confusion[i][j]
			cells = append(cells, strconv.Itoa(count))
			switch {
			case i == j:
				styles = append(styles, hitStyle)
			case count == 0:
				styles = append(styles, mutedStyle)
			default:
				styles = append(styles, cellStyle)
			}
		}
		cols = append(cols, column(cells, styles))
	}

	acc := []string{"acc"}
	accStyles := []lipgloss.Style{headerStyle}
	for _, c := range r.Classes {
		acc = append(acc, fmt.Sprintf("%.1f%%", 100*c.Accuracy))
		accStyles = append(accStyles, cellStyle)
	}
	cols = append(cols, column(acc, accStyles))

	var b strings.Builder
	if r.ModelID != "" {
		b.WriteString(noteStyle.Render("model " + r.ModelID))
		b.WriteByte('\n')
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	b.WriteByte('\n')
	b.WriteString(titleStyle.Render(fmt.Sprintf("accuracy %d/%d = %.2f%%", r.Correct, r.Total, 100*r.Accuracy)))
	return b.String()
}

type recognition struct {
	File      string  `yaml:"file" json:"file"`
	Label     string  `yaml:"label" json:"label"`
	LogProb   float64 `yaml:"log_prob" json:"log_prob"`
	Posterior float64 `yaml:"posterior" json:"posterior"`
	Margin    float64 `yaml:"margin" json:"margin"`
}

func newRecognition(file string, res *decoder.Result) recognition {
	return recognition{
		File:      file,
		Label:     res.Label,
		LogProb:   res.LogProb,
		Posterior: res.Scores[res.Index].Posterior,
		Margin:    res.Margin(),
	}
}

func renderRecognitions(rs []recognition) string {
	files := []string{"file"}
	labels := []string{"label"}
	probs := []string{"log P"}
	margins := []string{"margin"}
	fileStyles := []lipgloss.Style{headerStyle.Align(lipgloss.Left)}
	styles := []lipgloss.Style{headerStyle}
	for _, r := range rs {
		files = append(files, r.File)
		labels = append(labels, r.Label)
		probs = append(probs, strconv.FormatFloat(r.LogProb, 'f', 3, 64))
		margins = append(margins, strconv.FormatFloat(r.Margin, 'f', 3, 64))
		fileStyles = append(fileStyles, cellStyle.Align(lipgloss.Left))
		styles = append(styles, cellStyle)
	}
	labelStyles := append([]lipgloss.Style{headerStyle}, repeatStyle(hitStyle, len(rs))...)
	return lipgloss.JoinHorizontal(lipgloss.Top,
		column(files, fileStyles),
		column(labels, labelStyles),
		column(probs, styles),
		column(margins, styles),
	)
}

func repeatStyle(s lipgloss.Style, n int) []lipgloss.Style {
	out := make([]lipgloss.Style, n)
	for i := range out {
		out[i] = s
	}
	return out
}
