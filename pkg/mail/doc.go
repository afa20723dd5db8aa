// Package mail renders and delivers account emails (address confirmation and password reset).
//
// Delivery is asynchronous: Dispatcher renders the message, issues the email
// scoped token and hands the send to a bounded async.WorkerPool. Enqueue never
// blocks; when the queue is full the message is dropped, logged and counted.
//
//	sender := mail.NewSMTPSender(cfg, logger)
//	dispatcher := mail.NewDispatcher(ctx, sender, codec, mail.DispatcherConfig{Workers: 2, QueueSize: 100}, metrics, logger)
//	defer dispatcher.Close(10 * time.Second)
//
//	err := dispatcher.Enqueue(ctx, mail.Request{Kind: mail.KindConfirmEmail, Email: email, Username: name, BaseURL: base})
package mail
