package visualization

import (
	"image"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/image/draw"
)

// shades runs from dark to bright
var shades = []rune(" ░▒▓█")

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const (
	defaultCols = 80
	defaultRows = 24

	// title and help line
	chromeRows = 2
)

// Model is a bubbletea model that scrolls through a Slicer.
// Scrolling up moves to the previous slice, scrolling down to the next.
type Model struct {
	slicer *Slicer
	name   string
	width  int
	height int
}

// NewModel creates a viewer model for slicer labelled with name
func NewModel(slicer *Slicer, name string) Model {
	return Model{slicer: slicer, name: name, width: defaultCols, height: defaultRows}
}

// Slicer returns the slicer driven by the model
func (m Model) Slicer() *Slicer {
	return m.slicer
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			m.slicer.Previous()
		case "down", "j":
			m.slicer.Next()
		case "home", "g":
			m.slicer.SetSlice(0)
		case "end", "G":
			m.slicer.SetSlice(m.slicer.Depth() - 1)
		}

	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress {
			break
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.slicer.Previous()
		case tea.MouseButtonWheelDown:
			m.slicer.Next()
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	}
	return m, nil
}

func (m Model) View() string {
	title := titleStyle.Render(strings.TrimSpace(m.name + "  " + m.slicer.Title()))
	body := Render(m.slicer.Current(), m.width, m.height-chromeRows)
	help := helpStyle.Render("↑/k previous • ↓/j next • home/end • q quit")
	return lipgloss.JoinVertical(lipgloss.Left, title, body, help)
}

// Render draws img as shaded block characters fitting in cols x rows cells.
// Terminal cells are about twice as tall as wide, which the scaling accounts for.
func Render(img *image.Gray16, cols, rows int) string {
	b := img.Bounds()
	if b.Empty() || cols <= 0 || rows <= 0 {
		return ""
	}

	w := cols
	h := b.Dy() * w / b.Dx() / 2
	if h > rows {
		h = rows
		w = b.Dx() * h * 2 / b.Dy()
	}
	w, h = max(w, 1), max(h, 1)

	dst := image.NewGray16(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

	var out strings.Builder
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			level := int(dst.Gray16At(x, y).Y) * len(shades) / 65536
			out.WriteRune(shades[level])
		}
		if y < h-1 {
			out.WriteByte('\n')
		}
	}
	return out.String()
}

// Run shows the slicer full-screen until the user quits
func Run(slicer *Slicer, name string) error {
	p := tea.NewProgram(NewModel(slicer, name), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
