// Package visual renders digit images and predictions for the terminal.
package visual

import (
	"fmt"
	"strings"
)

// Ten-step intensity ramp, darkest to brightest.
const ramp = " .:-=+*#%@"

const barWidth = 24

// RenderImage draws a flattened intensity image (values in [0, 1]) as ASCII
// art, one rune per pixel, cols pixels per line.
func RenderImage(pixels []float64, cols int) string {
	var sb strings.Builder
	for i, p := range pixels {
		if p < 0 {
			p = 0
		}
		if p > 1 {
			p = 1
		}
		idx := int(p * float64(len(ramp)-1))
		sb.WriteByte(ramp[idx])
		if (i+1)%cols == 0 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// RenderPrediction draws an image next to its class probabilities: the
// ASCII digit, a bar per class, and the predicted vs. actual labels.
func RenderPrediction(pixels []float64, cols int, probs []float64, actual int) string {
	var sb strings.Builder
	sb.WriteString(RenderImage(pixels, cols))

	predicted := 0
	for class, p := range probs {
		if p > probs[predicted] {
			predicted = class
		}
	}

	for class, p := range probs {
		marker := " "
		if class == predicted {
			marker = ">"
		}
		fill := int(p*barWidth + 0.5)
		if fill > barWidth {
			fill = barWidth
		}
		bar := strings.Repeat("#", fill) + strings.Repeat(".", barWidth-fill)
		fmt.Fprintf(&sb, "%s %d [%s] %5.1f%%\n", marker, class, bar, p*100)
	}

	verdict := "correct"
	if predicted != actual {
		verdict = "WRONG"
	}
	fmt.Fprintf(&sb, "predicted %d, actual %d (%s)\n", predicted, actual, verdict)
	return sb.String()
}
