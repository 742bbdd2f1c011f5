package biz

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	chapterHeadingRe = regexp.MustCompile(`(?i)^#\s+chapter\s+(\d+)\s*:\s*(.+?)\s*$`)
	sectionHeadingRe = regexp.MustCompile(`^##\s+(\d+\.\d+)\s+(.+?)\s*$`)
)

// ParsedSection is one section of a chapter. Name is empty for the text
// between the chapter heading and the first section heading.
type ParsedSection struct {
	Name    string
	Content string
}

// ParsedChapter is one parsed book chapter.
type ParsedChapter struct {
	Number   int
	Title    string
	Sections []ParsedSection
}

// FullTitle returns the display title ("Chapter N: Title").
func (c *ParsedChapter) FullTitle() string {
	return fmt.Sprintf("Chapter %d: %s", c.Number, c.Title)
}

// WordCount counts whitespace-separated words across all sections.
func (c *ParsedChapter) WordCount() int {
	n := 0
	for _, s := range c.Sections {
		n += len(strings.Fields(s.Content))
	}
	return n
}

// ParseBook splits the book Markdown into chapters and sections. Chapter
// headings are "# Chapter N: Title" (case-insensitive); section headings
// are "## N.M Title". Text outside any chapter is ignored.
func ParseBook(markdown string) ([]*ParsedChapter, error) {
	var (
		chapters []*ParsedChapter
		current  *ParsedChapter
		section  *ParsedSection
		body     strings.Builder
	)

	flushSection := func() {
		if current == nil || section == nil {
			return
		}
		content := strings.TrimSpace(body.String())
		if content != "" || section.Name != "" {
			section.Content = content
			current.Sections = append(current.Sections, *section)
		}
		section = nil
		body.Reset()
	}

	scanner := bufio.NewScanner(strings.NewReader(markdown))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if m := chapterHeadingRe.FindStringSubmatch(line); m != nil {
			flushSection()
			number, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, fmt.Errorf("invalid chapter number %q: %w", m[1], err)
			}
			current = &ParsedChapter{Number: number, Title: m[2]}
			chapters = append(chapters, current)
			section = &ParsedSection{}
			continue
		}
		if m := sectionHeadingRe.FindStringSubmatch(line); m != nil && current != nil {
			flushSection()
			section = &ParsedSection{Name: m[1] + " " + m[2]}
			continue
		}
		if current != nil {
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan book text: %w", err)
	}
	flushSection()

	if len(chapters) == 0 {
		return nil, fmt.Errorf("no chapter headings found")
	}
	return chapters, nil
}
