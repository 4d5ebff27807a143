package handler

import (
	"context"
	"fmt"

	"studio/internal/bus"
	"studio/internal/logging"
)

// registerBuiltins fills the fixed handler table.
func (d *Dispatcher) registerBuiltins() {
	d.registry.MustRegister("navigate", d.handleNavigate)
	d.registry.MustRegister("navigateBack", d.handleNavigateBack)
	d.registry.MustRegister("navigateForward", d.handleNavigateForward)
	d.registry.MustRegister("publish", d.handlePublish)
	d.registry.MustRegister("log", d.handleLog)
	d.registry.MustRegister("openDialog", d.handleOpenDialog)
	d.registry.MustRegister("setTextById", d.handleSetTextByID)
	d.registry.MustRegister("resolvefetch", d.handleResolveFetch)
	d.registry.MustRegister("refreshPage", d.handleRefreshPage)
	d.registry.MustRegister("refreshList", d.handleRefreshList)
}

// handleNavigate publishes a page-navigate event (which feeds the history
// manager unless fromHistory is set), then loads the target page and
// kicks off nested-reference preloading. The page load is best-effort:
// navigation announcements go out even when the page is missing.
func (d *Dispatcher) handleNavigate(ctx context.Context, p Params) (any, error) {
	pageID := p.String("pageId")
	url := p.String("url")
	if pageID == "" && url == "" {
		return nil, fmt.Errorf("navigate: pageId or url required")
	}

	d.deps.Bus.Publish(bus.TopicPageNavigate, map[string]any{
		"pageId":      pageID,
		"pageName":    p.String("pageName"),
		"url":         url,
		"title":       p.String("title"),
		"fromHistory": p.Bool("fromHistory"),
	})

	if pageID == "" || d.deps.Metadata == nil {
		return nil, nil
	}
	pg, err := d.deps.Metadata.GetPage(pageID)
	if err != nil {
		logging.HandlersDebug("navigate: page %s not loadable: %v", pageID, err)
		return nil, nil
	}
	if d.deps.Preloader != nil {
		d.deps.Preloader.ScanAndPreloadNested(ctx, pg)
	}
	return pg, nil
}

// handleNavigateBack replays the previous history entry. The replayed
// navigation carries fromHistory so the history manager does not record
// it again.
func (d *Dispatcher) handleNavigateBack(ctx context.Context, p Params) (any, error) {
	item := d.deps.History.GoBack()
	if item == nil {
		logging.HandlersDebug("navigateBack: nothing to go back to")
		return nil, nil
	}
	return d.replayHistoryItem(ctx, item.PageID, item.PageName, item.URL, item.Title)
}

// handleNavigateForward replays the next history entry.
func (d *Dispatcher) handleNavigateForward(ctx context.Context, p Params) (any, error) {
	item := d.deps.History.GoForward()
	if item == nil {
		logging.HandlersDebug("navigateForward: nothing to go forward to")
		return nil, nil
	}
	return d.replayHistoryItem(ctx, item.PageID, item.PageName, item.URL, item.Title)
}

func (d *Dispatcher) replayHistoryItem(ctx context.Context, pageID, pageName, url, title string) (any, error) {
	return d.handleNavigate(ctx, Params{
		"pageId":      pageID,
		"pageName":    pageName,
		"url":         url,
		"title":       title,
		"fromHistory": true,
	})
}

// handlePublish forwards an arbitrary payload onto the bus.
func (d *Dispatcher) handlePublish(_ context.Context, p Params) (any, error) {
	topic := p.String("topic")
	if topic == "" {
		return nil, fmt.Errorf("publish: topic required")
	}
	d.deps.Bus.Publish(topic, p["payload"])
	return nil, nil
}

// handleLog writes a message to the handlers log.
func (d *Dispatcher) handleLog(_ context.Context, p Params) (any, error) {
	logging.Handlers("%s", p.String("message"))
	return nil, nil
}

// handleOpenDialog announces a dialog open request.
func (d *Dispatcher) handleOpenDialog(_ context.Context, p Params) (any, error) {
	d.deps.Bus.Publish(bus.TopicDialogOpen, map[string]any{
		"dialogId": p.String("dialogId"),
		"props":    p.Map("props"),
	})
	return nil, nil
}

// handleSetTextByID mutates one element's text.
func (d *Dispatcher) handleSetTextByID(_ context.Context, p Params) (any, error) {
	id := p.String("id")
	if id == "" {
		return nil, fmt.Errorf("setTextById: id required")
	}
	d.deps.Elements.SetText(id, p.String("text"))
	return nil, nil
}

// handleRefreshPage invalidates the metadata snapshot and tells renderers
// holding the page to re-read.
func (d *Dispatcher) handleRefreshPage(_ context.Context, p Params) (any, error) {
	if d.deps.Metadata != nil {
		d.deps.Metadata.Invalidate()
	}
	d.deps.Bus.Publish(bus.TopicPageRefresh, map[string]any{
		"pageId": p.String("pageId"),
	})
	return nil, nil
}

// handleRefreshList refreshes one list by id, or every list when no id is
// given.
func (d *Dispatcher) handleRefreshList(_ context.Context, p Params) (any, error) {
	listID := p.String("listId")
	if listID == "" {
		d.deps.Bus.Publish(bus.TopicListRefreshAll, map[string]any{})
		return nil, nil
	}
	d.deps.Bus.Publish(bus.TopicListRefresh, map[string]any{"listId": listID})
	return nil, nil
}
