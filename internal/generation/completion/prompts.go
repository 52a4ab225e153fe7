package completion

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"github.com/casegen/casegen-backend/internal/generation/domain"
	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

type promptPair struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type promptFile struct {
	Titles  promptPair `yaml:"titles"`
	Details promptPair `yaml:"details"`
}

type compiledPair struct {
	system *template.Template
	user   *template.Template
}

type prompts struct {
	titles  compiledPair
	details compiledPair
}

type titlesPromptData struct {
	Documentation  string
	ProjectName    string
	MaxTitles      int
	MaxTitleLength int
}

type detailsPromptData struct {
	Title         string
	Position      int
	Total         int
	Titles        []string
	Previous      []string
	Documentation string
	ProjectName   string
}

var promptFuncs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

func loadPrompts(data []byte) (*prompts, error) {
	var f promptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	titles, err := compilePair("titles", f.Titles)
	if err != nil {
		return nil, err
	}
	details, err := compilePair("details", f.Details)
	if err != nil {
		return nil, err
	}
	return &prompts{titles: titles, details: details}, nil
}

func compilePair(name string, p promptPair) (compiledPair, error) {
	if p.System == "" || p.User == "" {
		return compiledPair{}, fmt.Errorf("prompt %q: system and user templates are required", name)
	}
	sys, err := template.New(name + ".system").Funcs(promptFuncs).Parse(p.System)
	if err != nil {
		return compiledPair{}, fmt.Errorf("prompt %q system: %w", name, err)
	}
	usr, err := template.New(name + ".user").Funcs(promptFuncs).Parse(p.User)
	if err != nil {
		return compiledPair{}, fmt.Errorf("prompt %q user: %w", name, err)
	}
	return compiledPair{system: sys, user: usr}, nil
}

func (c compiledPair) render(data any) (string, string, error) {
	var sys, usr bytes.Buffer
	if err := c.system.Execute(&sys, data); err != nil {
		return "", "", fmt.Errorf("render system prompt: %w", err)
	}
	if err := c.user.Execute(&usr, data); err != nil {
		return "", "", fmt.Errorf("render user prompt: %w", err)
	}
	return sys.String(), usr.String(), nil
}

func (p *prompts) renderTitles(req TitlesRequest) (string, string, error) {
	return p.titles.render(titlesPromptData{
		Documentation:  req.Documentation,
		ProjectName:    req.ProjectName,
		MaxTitles:      domain.MaxTitles,
		MaxTitleLength: domain.MaxTitleLength,
	})
}

func (p *prompts) renderDetails(req DetailsRequest) (string, string, error) {
	return p.details.render(detailsPromptData{
		Title:         req.Title,
		Position:      req.Index + 1,
		Total:         len(req.Titles),
		Titles:        req.Titles,
		Previous:      req.Titles[:req.Index],
		Documentation: req.Documentation,
		ProjectName:   req.ProjectName,
	})
}
