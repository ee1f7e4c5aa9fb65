// Package memoir embeds the memoir photo library in a Go program: a
// tag-indexed record store persisted as one JSON document, plus a match
// workflow that asks a chat-completion model to pick the photo that fits a
// free-text description.
//
//	client, _ := memoir.New(ctx,
//	    memoir.WithFileStore("data/photos.json"),
//	    memoir.WithPhotoDir("photos"),
//	    memoir.WithCompletion("https://api.openai.com/v1", key, "gpt-4o-mini"),
//	)
//	defer client.Close()
//
//	_, _ = client.Photos().Rebuild(ctx)
//	res, err := client.Match(ctx, "sunset at the beach")
//	if err == nil && res.Found {
//	    fmt.Println(res.Photo.Path)
//	}
package memoir
