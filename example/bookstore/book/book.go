// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package book stores the books of the bookstore in memory.
package book

import (
	"cmp"
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned for an unknown book id.
var ErrNotFound = errors.New("book: not found")

type Book struct {
	ID     string `json:"id"`
	Title  string `json:"title" validate:"required"`
	Author string `json:"author" validate:"required"`
}

type Review struct {
	Rating  int    `json:"rating" validate:"gte=1,lte=5"`
	Comment string `json:"comment"`
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	books   map[string]Book
	reviews map[string][]Review
}

func NewStore() *Store {
	return &Store{
		books:   make(map[string]Book),
		reviews: make(map[string][]Review),
	}
}

// Add assigns b an id and stores it.
func (s *Store) Add(b Book) Book {
	s.mu.Lock()
	defer s.mu.Unlock()

	b.ID = uuid.NewString()
	s.books[b.ID] = b
	return b
}

func (s *Store) Get(id string) (Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books[id]
	if !ok {
		return Book{}, ErrNotFound
	}
	return b, nil
}

// List returns every book ordered by title.
func (s *Store) List() []Book {
	s.mu.RLock()
	defer s.mu.RUnlock()

	books := make([]Book, 0, len(s.books))
	for _, b := range s.books {
		books = append(books, b)
	}
	slices.SortFunc(books, func(a, b Book) int {
		return cmp.Or(cmp.Compare(a.Title, b.Title), cmp.Compare(a.ID, b.ID))
	})
	return books
}

// Delete removes a book and its reviews.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[id]; !ok {
		return ErrNotFound
	}
	delete(s.books, id)
	delete(s.reviews, id)
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.books)
}

// AddReview stores r for the book with id.
func (s *Store) AddReview(id string, r Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[id]; !ok {
		return ErrNotFound
	}
	s.reviews[id] = append(s.reviews[id], r)
	return nil
}

func (s *Store) Reviews(id string) ([]Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.books[id]; !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(s.reviews[id]), nil
}
