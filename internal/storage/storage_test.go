package storage

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPublicURL(t *testing.T) {
	key := "chat-media/u1/1714564800000.png"
	assert.Equal(t,
		"https://media.s3.eu-west-1.amazonaws.com/chat-media/u1/1714564800000.png",
		PublicURL(S3Config{Bucket: "media", Region: "eu-west-1"}, key))
	assert.Equal(t,
		"http://localhost:9000/media/chat-media/u1/1714564800000.png",
		PublicURL(S3Config{Bucket: "media", Endpoint: "http://localhost:9000/"}, key))
	assert.Equal(t,
		"https://cdn.example.com/avatars/u%201.jpg",
		PublicURL(S3Config{Bucket: "media", PublicBaseURL: "https://cdn.example.com/"}, "avatars/u 1.jpg"))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "avatars/u1.jpg", AvatarKey("u1"))
	assert.Equal(t, "a/b.png_thumb.jpg", ThumbnailKey("a/b.png"))
}

func TestThumbnail(t *testing.T) {
	out, err := Thumbnail(pngBytes(t, 640, 480))
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, ThumbnailWidth, img.Bounds().Dx())
	assert.Equal(t, 240, img.Bounds().Dy())

	out, err = Thumbnail(pngBytes(t, 100, 50))
	require.NoError(t, err)
	img, err = imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
}

func TestAvatar(t *testing.T) {
	out, err := Avatar(pngBytes(t, 300, 120))
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, AvatarSize, img.Bounds().Dx())
	assert.Equal(t, AvatarSize, img.Bounds().Dy())

	_, err = Avatar([]byte("not an image"))
	assert.ErrorIs(t, err, ErrNotImage)
}
