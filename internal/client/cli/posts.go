package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/gophblog/internal/client/models"
)

func (a *App) createPost(ctx context.Context, args []string) error {
	fs := a.newFlagSet("create")
	title := fs.String("t", "", "title")
	body := fs.String("b", "", "content (read from input when omitted)")
	if _, err := parseFlags(fs, args); err != nil {
		return err
	}

	if err := a.prompt(title, "Title"); err != nil {
		return err
	}
	if *body == "" {
		text, err := GetMultiline(a.reader, "Content", a.errOut)
		if err != nil {
			return err
		}
		*body = text
	}

	cctx, cancel := a.call(ctx)
	defer cancel()

	p, err := a.client.CreatePost(cctx, *title, *body)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created post %d\n", p.ID)
	return nil
}

func (a *App) getPost(ctx context.Context, args []string) error {
	fs := a.newFlagSet("get")
	positional, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	id, err := postID(positional)
	if err != nil {
		return err
	}

	cctx, cancel := a.call(ctx)
	defer cancel()

	p, err := a.client.GetPost(cctx, id)
	if err != nil {
		return err
	}
	a.printPost(p)
	return nil
}

func (a *App) listPosts(ctx context.Context, args []string) error {
	fs := a.newFlagSet("list")
	limit := fs.Int("limit", 0, "page size (server default when 0)")
	offset := fs.Int("offset", 0, "posts to skip")
	if _, err := parseFlags(fs, args); err != nil {
		return err
	}

	cctx, cancel := a.call(ctx)
	defer cancel()

	page, err := a.client.ListPosts(cctx, *limit, *offset)
	if err != nil {
		return err
	}

	if len(page.Posts) == 0 {
		fmt.Fprintf(a.out, "no posts (total %d)\n", page.Total)
		return nil
	}
	for _, p := range page.Posts {
		fmt.Fprintf(a.out, "#%d  %s  (user %d, %s)\n", p.ID, p.Title, p.AuthorID, formatTime(p.CreatedAt))
	}
	fmt.Fprintf(a.out, "showing %d-%d of %d\n", page.Offset+1, page.Offset+len(page.Posts), page.Total)
	return nil
}

// updatePost sends only the fields whose flags were given.
func (a *App) updatePost(ctx context.Context, args []string) error {
	fs := a.newFlagSet("update")
	title := fs.String("t", "", "new title")
	body := fs.String("b", "", "new content")
	positional, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	id, err := postID(positional)
	if err != nil {
		return err
	}

	var update models.PostUpdate
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			update.Title = title
		case "b":
			update.Content = body
		}
	})

	cctx, cancel := a.call(ctx)
	defer cancel()

	p, err := a.client.UpdatePost(cctx, id, update)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "updated post %d\n", p.ID)
	return nil
}

func (a *App) deletePost(ctx context.Context, args []string) error {
	positional, err := parseFlags(a.newFlagSet("delete"), args)
	if err != nil {
		return err
	}
	id, err := postID(positional)
	if err != nil {
		return err
	}

	cctx, cancel := a.call(ctx)
	defer cancel()

	if err := a.client.DeletePost(cctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted post %d\n", id)
	return nil
}

func postID(positional []string) (int64, error) {
	if len(positional) != 1 {
		return 0, usagef("expected exactly one post id")
	}
	id, err := strconv.ParseInt(positional[0], 10, 64)
	if err != nil {
		return 0, usagef("post id must be an integer, got %q", positional[0])
	}
	return id, nil
}

func (a *App) printPost(p *models.Post) {
	fmt.Fprintf(a.out, "#%d %s\n", p.ID, p.Title)
	fmt.Fprintf(a.out, "by user %d, created %s, updated %s\n\n", p.AuthorID, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	fmt.Fprintln(a.out, p.Content)
}
