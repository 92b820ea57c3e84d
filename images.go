package radpress

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"
)

const (
	maxImageWidth = 1600
	maxUploadSize = 10 << 20 // 10MB
	maxNameLength = 100

	// ImageDir is where uploads land, relative to the media root.
	ImageDir = "radpress/entry_images"
)

// processImage decodes an upload, scales it down to maxImageWidth and
// re-encodes it as JPEG.
func processImage(src io.Reader, quality int) ([]byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if w, h := b.Dx(), b.Dy(); w > maxImageWidth {
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, h*maxImageWidth/w))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		img = dst
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// uniqueImagePath returns a media-relative path for an upload named
// original that is neither on disk nor recorded in the store.
func (a *App) uniqueImagePath(original string) (string, error) {
	base := Slugify(strings.TrimSuffix(original, filepath.Ext(original)))
	if base == "" {
		base = "image"
	}
	for n := 1; ; n++ {
		name := base + ".jpg"
		if n > 1 {
			name = base + "-" + strconv.Itoa(n) + ".jpg"
		}
		rel := path.Join(ImageDir, name)
		if _, err := os.Stat(a.Thumbs.Path(EntryImage{Image: rel})); err == nil {
			continue
		}
		taken, err := a.Store.ImageExists(rel)
		if err != nil {
			return "", err
		}
		if !taken {
			return rel, nil
		}
	}
}

func (a *App) handleImageUpload(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return c.String(http.StatusBadRequest, "No image file provided")
	}
	if file.Size > maxUploadSize {
		return c.String(http.StatusBadRequest, "File too large (max 10MB)")
	}
	name := strings.TrimSpace(c.FormValue("name"))
	if len([]rune(name)) > maxNameLength {
		return c.String(http.StatusBadRequest, "Name too long")
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	data, err := processImage(src, a.Config.ThumbnailQuality)
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid image: "+err.Error())
	}

	rel, err := a.uniqueImagePath(file.Filename)
	if err != nil {
		return err
	}
	img := EntryImage{Name: name, Image: rel}
	dst := a.Thumbs.Path(img)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create image dir: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	if err := a.Store.SaveImage(&img); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/images/")
}

func (a *App) handleImageDelete(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid image id")
	}
	img, err := a.Store.GetImage(id)
	if err != nil {
		return err
	}
	if err := a.Thumbs.RemoveThumbnails(img); err != nil {
		c.Logger().Warnf("remove thumbnails of %s: %v", img.Image, err)
	}
	if err := os.Remove(a.Thumbs.Path(img)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := a.Store.DeleteImage(id); err != nil {
		return err
	}
	a.Cache.Invalidate()
	return c.Redirect(http.StatusSeeOther, "/admin/images/")
}

func (a *App) handleImageList(c echo.Context) error {
	images, err := a.Store.ListImages()
	if err != nil {
		return err
	}
	rows := make([]AdminImage, len(images))
	for i, img := range images {
		tag, err := a.Thumbs.ThumbnailTag(img)
		if err != nil {
			c.Logger().Warnf("thumbnail for %s: %v", img.Image, err)
		}
		rows[i] = AdminImage{EntryImage: img, URL: img.URL(a.Config.MediaURL), ThumbnailTag: tag}
	}
	return Render(c, a.Views.AdminImages(rows, CsrfToken(c)))
}
