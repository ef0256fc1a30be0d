package notify

import (
	"github.com/gorilla/feeds"
	"github.com/pkg/errors"
)

// Feed renders the notification history as an Atom feed rooted at link.
func (s *Service) Feed(link string) (string, error) {
	history := s.History()

	feed := &feeds.Feed{
		Title:       Title,
		Link:        &feeds.Link{Href: link},
		Description: "Meditation reminders",
		Items:       make([]*feeds.Item, 0, len(history)),
	}
	if len(history) > 0 {
		feed.Created = history[0].CreatedAt()
	}
	for _, n := range history {
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          n.ID,
			Title:       n.Title,
			Link:        &feeds.Link{Href: link},
			Description: n.Body,
			Created:     n.CreatedAt(),
		})
	}

	atom, err := feed.ToAtom()
	if err != nil {
		return "", errors.Wrap(err, "failed to render feed")
	}
	return atom, nil
}
