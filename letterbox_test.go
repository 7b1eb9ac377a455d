package g2d

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLetterbox(t *testing.T) {
	tests := []struct {
		name                   string
		srcW, srcH, dstW, dstH int
		want                   image.Rectangle
	}{
		{"same aspect", 1920, 1080, 1280, 720, image.Rect(0, 0, 1280, 720)},
		{"wide into square", 1920, 1080, 640, 640, image.Rect(0, 140, 640, 500)},
		{"tall into wide", 1080, 1920, 1280, 720, image.Rect(437, 0, 842, 720)},
		{"square into wide", 640, 640, 1920, 1080, image.Rect(420, 0, 1500, 1080)},
		{"zero source", 0, 1080, 640, 640, image.Rectangle{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Letterbox(tt.srcW, tt.srcH, tt.dstW, tt.dstH)
			assert.Equal(t, tt.want, got)
			if !got.Empty() {
				assert.True(t, got.In(image.Rect(0, 0, tt.dstW, tt.dstH)))
			}
		})
	}
}
