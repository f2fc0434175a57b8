package alarm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mgarridoch/breakfast-alarm/internal/config"
	domain "github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
)

// Repository defines persistence operations for the armed alarm.
type Repository interface {
	// Load returns the persisted alarm or ErrNotFound.
	Load(ctx context.Context) (*domain.ScheduledAlarm, error)
	// Save replaces the persisted alarm.
	Save(ctx context.Context, a *domain.ScheduledAlarm) error
	// Clear forgets the persisted alarm. Clearing an empty slot is not an error.
	Clear(ctx context.Context) error
}

// Struct field names of the state file.
const (
	fieldID      = "id"
	fieldFireAt  = "fire_at"
	fieldArmedAt = "armed_at"
	fieldCommand = "command"
)

var (
	// ErrNotFound is returned when no alarm is persisted.
	ErrNotFound = errors.New("alarm not found")
	// ErrCorrupt is returned when the state file exists but does not
	// describe an alarm.
	ErrCorrupt = errors.New("corrupt alarm state")
)

// FileRepository persists the armed alarm to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the state file location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the alarm from disk.
func (r *FileRepository) Load(_ context.Context) (*domain.ScheduledAlarm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var s structpb.Struct
	if err = protojson.Unmarshal(contents, &s); err != nil {
		return nil, fmt.Errorf("decode state file: %w: %w", ErrCorrupt, err)
	}

	return fromStruct(&s)
}

// Save writes the alarm to disk. The file is replaced by rename, so a crash
// mid-save leaves either the old or the new contents. The wake handle is
// process-local and is not persisted.
func (r *FileRepository) Save(_ context.Context, a *domain.ScheduledAlarm) error {
	if a == nil {
		return r.Clear(context.Background())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}

	data, err := marshalOptions.Marshal(toStruct(a))
	if err != nil {
		return fmt.Errorf("encode alarm: %w", err)
	}

	return writeFileAtomic(r.path, data)
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}

	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err == nil {
		err = os.Chmod(tmpName, config.DefaultFilePermissions)
	}

	if err == nil {
		err = os.Rename(tmpName, path)
	}

	if err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}

// Clear removes the state file.
func (r *FileRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove state file: %w", err)
	}

	return nil
}

// toStruct converts the domain alarm into its persisted form.
func toStruct(a *domain.ScheduledAlarm) *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldID:      structpb.NewStringValue(a.ID),
		fieldFireAt:  structpb.NewStringValue(a.FireAt.UTC().Format(time.RFC3339Nano)),
		fieldCommand: structpb.NewStringValue(a.Command.String()),
	}

	if !a.ArmedAt.IsZero() {
		fields[fieldArmedAt] = structpb.NewStringValue(a.ArmedAt.UTC().Format(time.RFC3339Nano))
	}

	return &structpb.Struct{Fields: fields}
}

// fromStruct converts the persisted form back into the domain alarm.
func fromStruct(s *structpb.Struct) (*domain.ScheduledAlarm, error) {
	fields := s.GetFields()

	id := fields[fieldID].GetStringValue()
	if id == "" {
		return nil, fmt.Errorf("%w: missing %s", ErrCorrupt, fieldID)
	}

	fireAt, err := time.Parse(time.RFC3339Nano, fields[fieldFireAt].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, fieldFireAt, err)
	}

	cmd, err := domain.NewCommand(fields[fieldCommand].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, fieldCommand, err)
	}

	a := &domain.ScheduledAlarm{
		ID:      id,
		FireAt:  fireAt,
		Command: cmd,
	}

	if raw := fields[fieldArmedAt].GetStringValue(); raw != "" {
		if a.ArmedAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, fieldArmedAt, err)
		}
	}

	return a, nil
}
