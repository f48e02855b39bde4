// Package render runs a built chain offline.
//
// Each stage consumes the previous stage's complete output and is rendered
// in chunks of at most the configured chunk size. A stage that reports
// itself unavailable is retried after a short delay; a stage error or a
// stall aborts the render. Progress is reported after every chunk and never
// decreases.
//
//	handles, err := chain.NewBuilder(host).Build(ctx, input, descriptors)
//	if err != nil {
//		return err
//	}
//	out, err := render.New(render.WithProgress(show)).Render(ctx, input, handles)
package render
