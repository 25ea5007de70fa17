package imaging

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Options bound the output of normalization. Threshold gates whether
// normalization runs at all: payloads at or under it are uploaded
// untouched to avoid needless quality loss.
type Options struct {
	MaxWidth  int
	Quality   int
	Threshold int64
}

func DefaultOptions() Options {
	return Options{MaxWidth: 1600, Quality: 75, Threshold: 10 << 20}
}

// Normalize re-encodes an oversized image as JPEG no wider than
// opts.MaxWidth, scaled proportionally. Local compute only. The bool
// reports whether the bytes were re-encoded, so the caller knows the
// payload is now a JPEG regardless of what came in.
//
// Anything that is not a decodable image comes back unchanged, as does
// any input whose re-encoding fails: a broken photo should degrade the
// upload, not abort the post. The only error returned is the context's,
// checked between stages so an abandoned publish stops early.
func Normalize(ctx context.Context, data []byte, opts Options) ([]byte, bool, error) {
	if opts.Threshold > 0 && int64(len(data)) <= opts.Threshold {
		return data, false, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, false, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	img = scaleToWidth(img, opts.MaxWidth)
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var buf bytes.Buffer
	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = 75
	}
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return data, false, nil
	}
	return buf.Bytes(), true, nil
}

func scaleToWidth(img image.Image, maxWidth int) image.Image {
	bounds := img.Bounds()
	if maxWidth <= 0 || bounds.Dx() <= maxWidth {
		return img
	}
	height := bounds.Dy() * maxWidth / bounds.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
