package imageprep

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPrepare_ResizesLargeImages(t *testing.T) {
	p := New(100, 90)

	out, err := p.Prepare("RR123-big-bang.png", pngBytes(t, 400, 200))
	require.NoError(t, err)

	assert.True(t, out.Resized)
	assert.Equal(t, "RR123-big-bang.jpg", out.Name)
	assert.Equal(t, "image/jpeg", out.ContentType)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestPrepare_FlattensTransparencyOntoWhite(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 400, 400))
	for x := 150; x < 250; x++ {
		for y := 150; y < 250; y++ {
			img.Set(x, y, color.NRGBA{R: 200, A: 255})
		}
	}
	var src bytes.Buffer
	require.NoError(t, png.Encode(&src, img))

	out, err := New(100, 85).Prepare("logo.png", src.Bytes())
	require.NoError(t, err)
	require.True(t, out.Resized)

	decoded, err := jpeg.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	r, g, b, _ := decoded.At(2, 2).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestPrepare_KeepsSmallImages(t *testing.T) {
	data := pngBytes(t, 50, 80)

	out, err := New(100, 0).Prepare("small.png", data)
	require.NoError(t, err)

	assert.False(t, out.Resized)
	assert.Equal(t, "small.png", out.Name)
	assert.Equal(t, "image/png", out.ContentType)
	assert.Equal(t, data, out.Data)
}

func TestPrepare_PassesThroughUndecodable(t *testing.T) {
	data := []byte("RIFF\x00\x00\x00\x00WEBPVP8 not really")

	out, err := New(10, 0).Prepare("photo.webp", data)
	require.NoError(t, err)
	assert.False(t, out.Resized)
	assert.Equal(t, data, out.Data)
	assert.Equal(t, "photo.webp", out.Name)
}

func TestPrepare_Disabled(t *testing.T) {
	data := pngBytes(t, 400, 400)

	out, err := New(0, 0).Prepare("big.png", data)
	require.NoError(t, err)
	assert.False(t, out.Resized)
	assert.Equal(t, data, out.Data)
}
