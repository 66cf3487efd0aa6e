package dumper

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"
	"golang.org/x/crypto/sha3"

	"github.com/nao1215/sysdump/internal/model"
	"github.com/nao1215/sysdump/internal/report"
)

// errNoZipDir is returned when the archive directory is not set.
var errNoZipDir = errors.New("no archive directory configured")

// DigestExtension is appended to an archive path to name its digest file.
const DigestExtension = ".sha3"

// fdSink writes every flushed chunk to the run's output.
// One instance serves every Sink position of a run, so the report writer
// is created once and keeps its state across flushes.
type fdSink struct {
	base
	writer  report.Writer
	flushes int
}

func newFDSink() *fdSink {
	return &fdSink{base: base{name: NameFDSink}}
}

// PreExecute implements pipeline.Stage.
func (s *fdSink) PreExecute(_ context.Context, run *model.RunContext, buf *model.ResultBuffer) model.Status {
	s.bind(run, buf)
	if s.writer != nil {
		return model.StatusOk
	}
	var out io.Writer = os.Stdout
	if run != nil && run.Output != nil {
		out = run.Output
	}
	w, err := report.NewWriter(s.params().Format, out)
	if err != nil {
		return s.fail("failed to create report writer", err)
	}
	s.writer = w
	return model.StatusOk
}

// Execute implements pipeline.Stage. The buffer is emptied on every flush.
func (s *fdSink) Execute(_ context.Context) model.Status {
	rows := s.buf.Drain()
	if len(rows) == 0 {
		return model.StatusOk
	}
	if _, err := s.writer.WriteRows(rows); err != nil {
		return s.fail("failed to write rows", err)
	}
	s.flushes++
	return model.StatusOk
}

// Reset implements pipeline.Stage.
func (s *fdSink) Reset() {
	s.debug("sink closed", "flushes", s.flushes)
	s.writer = nil
	s.flushes = 0
	s.base.Reset()
}

// zipSink streams every flushed chunk into a single deflated entry of a
// timestamped archive under Params.ZipDir. The archive is created on the
// first visit and finalized in Reset, which also writes a SHA3-256 digest
// file next to it and records both paths in the run's usage record.
type zipSink struct {
	base
	now func() time.Time

	path    string
	file    *os.File
	archive *zip.Writer
	writer  report.Writer
	flushes int
}

func newZipSink() *zipSink {
	return &zipSink{base: base{name: NameZipSink}, now: time.Now}
}

// PreExecute implements pipeline.Stage.
func (s *zipSink) PreExecute(_ context.Context, run *model.RunContext, buf *model.ResultBuffer) model.Status {
	s.bind(run, buf)
	if s.writer != nil {
		return model.StatusOk
	}
	if err := s.open(); err != nil {
		return s.fail("failed to create archive", err)
	}
	s.logger.Info("archive created", "path", s.path)
	return model.StatusOk
}

func (s *zipSink) open() error {
	p := s.params()
	if _, err := report.NewWriter(p.Format, io.Discard); err != nil {
		return err
	}
	if p.ZipDir == "" {
		return errNoZipDir
	}
	if err := os.MkdirAll(p.ZipDir, 0o750); err != nil {
		return err
	}

	now := s.now()
	path := filepath.Join(p.ZipDir, ArchiveName(now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) //nolint:gosec // path is built from the configured directory
	if err != nil {
		return err
	}

	archive := zip.NewWriter(f)
	entry, err := archive.CreateHeader(&zip.FileHeader{
		Name:     "sysdump." + report.Extension(p.Format),
		Method:   zip.Deflate,
		Modified: now,
	})
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	w, err := report.NewWriter(p.Format, entry)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}

	s.path = path
	s.file = f
	s.archive = archive
	s.writer = w
	return nil
}

// Execute implements pipeline.Stage. The buffer is emptied on every flush.
func (s *zipSink) Execute(_ context.Context) model.Status {
	rows := s.buf.Drain()
	if len(rows) == 0 {
		return model.StatusOk
	}
	if _, err := s.writer.WriteRows(rows); err != nil {
		return s.fail("failed to write archive entry", err)
	}
	s.flushes++
	return model.StatusOk
}

// Reset implements pipeline.Stage.
func (s *zipSink) Reset() {
	if s.archive != nil {
		s.finalize()
	}
	s.path = ""
	s.file = nil
	s.archive = nil
	s.writer = nil
	s.flushes = 0
	s.base.Reset()
}

// finalize closes the archive, writes its digest file and records the
// result in the usage record.
func (s *zipSink) finalize() {
	if err := s.archive.Close(); err != nil {
		s.logger.Error("failed to finalize archive", "path", s.path, "error", err)
	}
	if err := s.file.Close(); err != nil {
		s.logger.Error("failed to close archive", "path", s.path, "error", err)
		return
	}

	digest, err := WriteDigestFile(s.path)
	if err != nil {
		s.logger.Error("failed to write archive digest", "path", s.path, "error", err)
	}
	if s.run != nil && s.run.Usage != nil {
		s.run.Usage.Output = s.path
		s.run.Usage.Digest = digest
	}
	s.logger.Info("archive written", "path", s.path, "flushes", s.flushes, "sha3", digest)
}

// ArchiveName returns the archive file name for t,
// e.g. "sysdump-20240131-235959-042.zip".
func ArchiveName(t time.Time) string {
	return fmt.Sprintf("sysdump-%s-%03d.zip", t.Format("20060102-150405"), t.Nanosecond()/int(time.Millisecond))
}

// FileDigest returns the hex SHA3-256 digest of the file at path.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path is an archive this process wrote
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha3.New256()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// WriteDigestFile writes "<digest>  <name>" to path+DigestExtension and
// returns the digest.
func WriteDigestFile(path string) (string, error) {
	digest, err := FileDigest(path)
	if err != nil {
		return "", err
	}
	line := digest + "  " + filepath.Base(path) + "\n"
	if err := os.WriteFile(path+DigestExtension, []byte(line), 0o600); err != nil {
		return digest, err
	}
	return digest, nil
}
