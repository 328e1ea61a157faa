// Package profile holds the user's interview-prep material: resume, target
// job description, saved stories, and onboarding answers. It is an explicit
// store object backed by an injectable key-value persistence layer.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrStoryNotFound = errors.New("story not found")

// Profile is everything the coach uses to personalize prompts.
type Profile struct {
	Resume          string   `json:"resume,omitempty"`
	JobDescription  string   `json:"jobDescription,omitempty"`
	AdditionalNotes string   `json:"additionalNotes,omitempty"`
	PersonalityType string   `json:"personalityType,omitempty"`
	Experience      string   `json:"experience,omitempty"`
	Goals           []string `json:"goals,omitempty"`
}

// Story is one saved behavioral story, refined over coaching sessions.
type Story struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Topic     string    `json:"topic"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store struct {
	kv KV
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

func profileKey(userID string) string { return "profile/" + userID }
func storiesKey(userID string) string { return "stories/" + userID }

// Get returns the stored profile, or the zero profile if none exists yet.
func (s *Store) Get(ctx context.Context, userID string) (Profile, error) {
	raw, ok, err := s.kv.Get(ctx, profileKey(userID))
	if err != nil {
		return Profile{}, err
	}
	if !ok {
		return Profile{}, nil
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return p, nil
}

func (s *Store) Put(ctx context.Context, userID string, p Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return s.kv.Set(ctx, profileKey(userID), raw)
}

func (s *Store) Stories(ctx context.Context, userID string) ([]Story, error) {
	raw, ok, err := s.kv.Get(ctx, storiesKey(userID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var stories []Story
	if err := json.Unmarshal(raw, &stories); err != nil {
		return nil, fmt.Errorf("decode stories: %w", err)
	}
	return stories, nil
}

func (s *Store) AddStory(ctx context.Context, userID string, story Story) (Story, error) {
	if story.ID == "" {
		story.ID = uuid.NewString()
	}
	story.UpdatedAt = time.Now().UTC()

	stories, err := s.Stories(ctx, userID)
	if err != nil {
		return Story{}, err
	}
	stories = append(stories, story)
	if err := s.saveStories(ctx, userID, stories); err != nil {
		return Story{}, err
	}
	return story, nil
}

func (s *Store) UpdateStory(ctx context.Context, userID string, story Story) (Story, error) {
	stories, err := s.Stories(ctx, userID)
	if err != nil {
		return Story{}, err
	}
	for i := range stories {
		if stories[i].ID == story.ID {
			story.UpdatedAt = time.Now().UTC()
			stories[i] = story
			if err := s.saveStories(ctx, userID, stories); err != nil {
				return Story{}, err
			}
			return story, nil
		}
	}
	return Story{}, ErrStoryNotFound
}

func (s *Store) RemoveStory(ctx context.Context, userID, storyID string) error {
	stories, err := s.Stories(ctx, userID)
	if err != nil {
		return err
	}
	kept := stories[:0]
	for _, st := range stories {
		if st.ID != storyID {
			kept = append(kept, st)
		}
	}
	if len(kept) == len(stories) {
		return ErrStoryNotFound
	}
	return s.saveStories(ctx, userID, kept)
}

func (s *Store) saveStories(ctx context.Context, userID string, stories []Story) error {
	raw, err := json.Marshal(stories)
	if err != nil {
		return fmt.Errorf("encode stories: %w", err)
	}
	return s.kv.Set(ctx, storiesKey(userID), raw)
}
