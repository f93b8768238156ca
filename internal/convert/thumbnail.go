package convert

import "context"

// ThumbnailGenerator renders a preview image for a converted asset. Kept as
// an explicit, independently callable step so a real renderer can slot in
// without touching the conversion chain.
type ThumbnailGenerator interface {
	// Generate renders assetPath into thumbPath. The boolean reports whether
	// a thumbnail was produced; (false, nil) means generation is unsupported.
	Generate(ctx context.Context, assetPath, thumbPath string) (bool, error)
}

// NoopThumbnailer is the placeholder generator. Registry entries still carry
// a thumbnail path; consumers must tolerate the file not existing.
type NoopThumbnailer struct{}

func (NoopThumbnailer) Generate(context.Context, string, string) (bool, error) {
	return false, nil
}

var _ ThumbnailGenerator = NoopThumbnailer{}
