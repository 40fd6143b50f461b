package model

import (
	"sync"

	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

// StateManager は学習済みフラグと学習時の次元を保持します。各モデルが埋め込んで使う。
type StateManager struct {
	mu        sync.RWMutex
	fitted    bool
	nFeatures int
	nSamples  int
}

func NewStateManager() *StateManager {
	return &StateManager{}
}

func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitted
}

func (s *StateManager) SetFitted() {
	s.mu.Lock()
	s.fitted = true
	s.mu.Unlock()
}

// Reset は再学習の前に呼ぶ。
func (s *StateManager) Reset() {
	s.mu.Lock()
	s.fitted, s.nFeatures, s.nSamples = false, 0, 0
	s.mu.Unlock()
}

func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	s.nFeatures, s.nSamples = nFeatures, nSamples
	s.mu.Unlock()
}

func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nFeatures, s.nSamples
}

// RequireFitted は未学習なら NotFittedError を返します。
func (s *StateManager) RequireFitted(modelName, method string) error {
	if s.IsFitted() {
		return nil
	}
	return errors.NewNotFittedError(modelName, method)
}

// CheckInput は予測時の入力が空でなく、学習時と同じ列数であることを確かめます。
func (s *StateManager) CheckInput(op string, X interface{ Dims() (int, int) }) error {
	rows, cols := X.Dims()
	if rows == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if want, _ := s.GetDimensions(); cols != want {
		return errors.NewDimensionError(op, want, cols, 1)
	}
	return nil
}
