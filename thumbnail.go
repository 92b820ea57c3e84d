package radpress

import (
	"fmt"
	"html"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

// AdminThumbnailHeight is the edge of the square preview shown in the admin.
const AdminThumbnailHeight = 50

// Thumbnailer produces center-cropped thumbnails of images stored under
// MediaRoot and caches them next to the original.
type Thumbnailer struct {
	mediaRoot string // slash separated, no trailing slash
	mediaURL  string
	quality   int
}

// NewThumbnailer returns a Thumbnailer for files under mediaRoot served at
// mediaURL. quality is the JPEG quality of generated thumbnails.
func NewThumbnailer(mediaRoot, mediaURL string, quality int) *Thumbnailer {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	if !strings.HasSuffix(mediaURL, "/") {
		mediaURL += "/"
	}
	return &Thumbnailer{
		mediaRoot: filepath.ToSlash(filepath.Clean(mediaRoot)),
		mediaURL:  mediaURL,
		quality:   quality,
	}
}

// Path returns the filesystem path of an image.
func (t *Thumbnailer) Path(img EntryImage) string {
	return filepath.Join(filepath.FromSlash(t.mediaRoot), filepath.FromSlash(img.Image))
}

// ThumbnailURL returns the public URL of a width x height crop of img,
// generating the thumbnail on first request. size must be exactly two
// positive integers; anything else yields "" and a nil error.
func (t *Thumbnailer) ThumbnailURL(img EntryImage, size ...int) (string, error) {
	if len(size) != 2 || size[0] <= 0 || size[1] <= 0 {
		return "", nil
	}
	thumb, err := t.Thumbnail(t.Path(img), size[0], size[1])
	if err != nil {
		return "", err
	}
	return strings.Replace(filepath.ToSlash(thumb), t.mediaRoot+"/", t.mediaURL, 1), nil
}

// ThumbnailTag returns the admin preview: a link to the original wrapping a
// small square thumbnail.
func (t *Thumbnailer) ThumbnailTag(img EntryImage) (string, error) {
	thumb, err := t.ThumbnailURL(img, AdminThumbnailHeight, AdminThumbnailHeight)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`<a href="%s" target="_blank"><img src="%s" height="%d" /></a>`,
		html.EscapeString(img.URL(t.mediaURL)), html.EscapeString(thumb), AdminThumbnailHeight), nil
}

// Thumbnail returns the path of a width x height center crop of the image at
// src, creating it if it does not exist yet. PNG sources produce PNG
// thumbnails; everything else is encoded as JPEG.
func (t *Thumbnailer) Thumbnail(src string, width, height int) (string, error) {
	ext := ".jpg"
	if strings.EqualFold(filepath.Ext(src), ".png") {
		ext = ".png"
	}
	dst := fmt.Sprintf("%s.%dx%d_q%d_crop%s", src, width, height, t.quality, ext)
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}

	f, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return "", fmt.Errorf("decode image %s: %w", src, err)
	}
	thumb := cropToFill(img, width, height)

	// Write to a temp file and rename so concurrent readers never see a
	// partial thumbnail.
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".thumb-*")
	if err != nil {
		return "", fmt.Errorf("create thumbnail: %w", err)
	}
	defer os.Remove(tmp.Name())
	if ext == ".png" {
		err = png.Encode(tmp, thumb)
	} else {
		err = jpeg.Encode(tmp, thumb, &jpeg.Options{Quality: t.quality})
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("store thumbnail: %w", err)
	}
	return dst, nil
}

// RemoveThumbnails deletes every cached thumbnail of img.
func (t *Thumbnailer) RemoveThumbnails(img EntryImage) error {
	matches, err := filepath.Glob(t.Path(img) + ".*_crop.*")
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// cropToFill cuts the largest centered region of src with the aspect ratio
// of width x height and scales it to exactly that size.
func cropToFill(src image.Image, width, height int) image.Image {
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	cw, ch := sw, sw*height/width
	if ch > sh {
		ch = sh
		cw = sh * width / height
	}
	cw, ch = max(cw, 1), max(ch, 1)
	x0 := b.Min.X + (sw-cw)/2
	y0 := b.Min.Y + (sh-ch)/2
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, image.Rect(x0, y0, x0+cw, y0+ch), draw.Src, nil)
	return dst
}
