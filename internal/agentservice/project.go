package agentservice

import (
	"os"

	"github.com/wardenhq/warden/internal/model"
)

// ProjectStatus reports the current project directory plus its entry
// count.
type ProjectStatus struct {
	Path       string `json:"path"`
	Exists     bool   `json:"exists"`
	IsDir      bool   `json:"is_dir"`
	EntryCount int    `json:"entry_count"`
}

// OpenProject persists open_path only if it exists and is a directory;
// otherwise it reports the mismatch without persisting.
func (s *AgentService) OpenProject(path string) (ProjectStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := statPath(path)
	if status.Exists && status.IsDir {
		if err := s.store.WriteProjectState(model.ProjectState{OpenPath: path}); err != nil {
			return ProjectStatus{}, err
		}
		s.projectRoot = path
	}
	return status, nil
}

// ProjectStatusReport returns the current project directory's metadata.
func (s *AgentService) ProjectStatusReport() (ProjectStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return statPath(s.projectRoot), nil
}

func statPath(path string) ProjectStatus {
	status := ProjectStatus{Path: path}
	info, err := os.Stat(path)
	if err != nil {
		return status
	}
	status.Exists = true
	status.IsDir = info.IsDir()
	if status.IsDir {
		entries, err := os.ReadDir(path)
		if err == nil {
			status.EntryCount = len(entries)
		}
	}
	return status
}
