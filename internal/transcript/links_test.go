package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountDialogLinks(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"plain text", "Hello there", 0},
		{"ordinary link", `<a href="https://www.gov.uk">GOV.UK</a>`, 0},
		{"dialog link", `Do you want to <a href="#" data-vtz-link-type="Dialog" data-vtz-jump="123">continue</a>?`, 1},
		{"nested and mixed", `<p><a data-vtz-link-type="Dialog">a</a><span><a data-vtz-link-type="Dialog">b</a></span><a data-vtz-link-type="Web">c</a></p>`, 2},
		{"broken markup", `<a data-vtz-link-type="Dialog">unterminated`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountDialogLinks(tt.in))
		})
	}
}
