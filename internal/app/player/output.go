package player

import (
	"os"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/infra/media"
)

// Output abstracts the audio sink the engine drives. Load prepares a file
// for playback; Play, Pause and SetVolume act on the loaded file.
type Output interface {
	Load(path string) error
	Play()
	Pause()
	SetVolume(volume float64)
}

// FileOutput is the default output. Audio is rendered client-side by the
// overlay page, so the server only has to verify the file is playable and
// keep the transport state; the engine's wall clock stands in for the
// decoder position.
type FileOutput struct{}

// NewFileOutput creates a file-backed output.
func NewFileOutput() *FileOutput {
	return &FileOutput{}
}

// Load verifies the file exists and carries a supported extension.
func (o *FileOutput) Load(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to open track: path=%s", path), ErrMedia)
	}
	if info.IsDir() {
		return errors.Mark(errors.Newf("not a file: path=%s", path), ErrMedia)
	}
	if !media.Supported(path) {
		return errors.Mark(errors.Newf("unsupported format: path=%s", path), ErrMedia)
	}

	zlog.Debug().Str("path", path).Msg("output: track loaded")
	return nil
}

// Play starts playback of the loaded file.
func (o *FileOutput) Play() {
	zlog.Debug().Msg("output: play")
}

// Pause pauses playback.
func (o *FileOutput) Pause() {
	zlog.Debug().Msg("output: pause")
}

// SetVolume sets the output volume.
func (o *FileOutput) SetVolume(volume float64) {
	zlog.Debug().Float64("volume", volume).Msg("output: volume set")
}
