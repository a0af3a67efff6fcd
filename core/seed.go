package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML bootstrap document:
//
//	users:
//	  - username: laztopaz
//	    email: tope@example.com
//	    password: tope0852
//	emojis:
//	  - name: GRINNING FACE
//	    char: "😀"
//	    category: 1
//	    keywords: face, grin
//	    created_by: laztopaz
type SeedFile struct {
	Users []struct {
		Username string `yaml:"username"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
	} `yaml:"users"`
	Emojis []struct {
		Name      string `yaml:"name"`
		Char      string `yaml:"char"`
		Category  int    `yaml:"category"`
		Keywords  string `yaml:"keywords"`
		CreatedBy string `yaml:"created_by"`
	} `yaml:"emojis"`
}

// LoadSeedFile reads and parses path.
func LoadSeedFile(path string) (SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedFile{}, err
	}
	return parseSeedYAML(data)
}

func parseSeedYAML(data []byte) (SeedFile, error) {
	var doc SeedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return SeedFile{}, fmt.Errorf("seed yaml: %w", err)
	}
	for i, u := range doc.Users {
		if strings.TrimSpace(u.Username) == "" || strings.TrimSpace(u.Email) == "" || u.Password == "" {
			return SeedFile{}, fmt.Errorf("seed yaml: users[%d] needs username, email and password", i)
		}
	}
	for i, e := range doc.Emojis {
		if strings.TrimSpace(e.Name) == "" || strings.TrimSpace(e.Char) == "" {
			return SeedFile{}, fmt.Errorf("seed yaml: emojis[%d] needs name and char", i)
		}
	}
	return doc, nil
}

// Seed inserts the users and emojis of doc. It is idempotent: existing
// usernames are skipped and emojis are only inserted into an empty table.
func Seed(ctx context.Context, doc SeedFile, auth AuthService, users UserRepository, emojis EmojiRepository) error {
	ids := make(map[string]int64, len(doc.Users))
	for _, u := range doc.Users {
		existing, err := users.FindByUsername(ctx, u.Username)
		switch {
		case err == nil && existing != nil:
			ids[u.Username] = existing.ID
			continue
		case err != nil && !errors.Is(err, ErrUserNotFound):
			return fmt.Errorf("seed user %s: %w", u.Username, err)
		}
		identity, err := auth.Register(ctx, u.Username, u.Email, u.Password)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", u.Username, err)
		}
		ids[u.Username] = identity.ID
		log.Printf("seed: user created username=%s id=%d", identity.Username, identity.ID)
	}

	if len(doc.Emojis) == 0 {
		return nil
	}
	n, err := emojis.Count(ctx)
	if err != nil {
		return fmt.Errorf("seed emojis: %w", err)
	}
	if n > 0 {
		return nil
	}
	for _, e := range doc.Emojis {
		created, err := emojis.Create(ctx, Emoji{
			Name:      strings.TrimSpace(e.Name),
			Char:      strings.TrimSpace(e.Char),
			Category:  e.Category,
			Keywords:  strings.TrimSpace(e.Keywords),
			CreatedBy: ids[e.CreatedBy],
		})
		if err != nil {
			return fmt.Errorf("seed emoji %s: %w", e.Name, err)
		}
		log.Printf("seed: emoji created name=%q id=%d", created.Name, created.ID)
	}
	return nil
}
