package service

import "context"

type testTxRepos struct {
	requests      RequestTxRepository
	shares        ShareTxRepository
	notifications NotificationTxRepository
	resources     ResourceTxRepository
}

func (t *testTxRepos) Requests() RequestTxRepository {
	return t.requests
}

func (t *testTxRepos) Shares() ShareTxRepository {
	return t.shares
}

func (t *testTxRepos) Notifications() NotificationTxRepository {
	return t.notifications
}

func (t *testTxRepos) Resources() ResourceTxRepository {
	return t.resources
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}
