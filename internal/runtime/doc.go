/*
Package runtime holds the controller that drives one explorer session.

The Controller owns the decoder lifecycle (Uninitialized, Loading, then Ready
or Failed), turns pointer moves into decode requests and hands the results to
the ledger. Every request takes a sequence id when it starts; decodes run
outside the controller lock and may finish in any order, and the ledger only
accepts a result newer than the frame on screen.

	ctrl := runtime.NewController(loader.New(src), "models/generatorjs/model.json")
	if err := ctrl.Start(ctx); err != nil {
		// ctrl.Status().State == domain.StateFailed
	}
	ctrl.Hover(ctx, domain.Cursor{X: 0.3, Y: -1.2})
	buf, done := ctrl.Frame()
	draw(buf)
	done()
	ctrl.Painted()
*/
package runtime
