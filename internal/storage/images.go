package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const (
	ThumbnailWidth = 320
	AvatarSize     = 256
)

var ErrNotImage = errors.New("not a decodable image")

func decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return img, nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Thumbnail scales an image down to ThumbnailWidth, keeping its aspect ratio. Smaller
// images are not enlarged.
func Thumbnail(data []byte) ([]byte, error) {
	img, err := decode(data)
	if err != nil {
		return nil, err
	}
	if img.Bounds().Dx() > ThumbnailWidth {
		img = imaging.Resize(img, ThumbnailWidth, 0, imaging.Lanczos)
	}
	return encodeJPEG(img)
}

// Avatar center-crops an image to an AvatarSize square JPEG.
func Avatar(data []byte) ([]byte, error) {
	img, err := decode(data)
	if err != nil {
		return nil, err
	}
	return encodeJPEG(imaging.Fill(img, AvatarSize, AvatarSize, imaging.Center, imaging.Lanczos))
}
