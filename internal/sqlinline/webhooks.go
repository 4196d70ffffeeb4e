package sqlinline

const QInsertWebhookEvent = `--sql dcfd1c20-b631-4dc0-8f68-9b2410d0ddd2
insert into webhook_events (id, type, received_at)
values ($1::text, $2::text, now())
on conflict (id) do nothing;
`

const QDeleteWebhookEvent = `--sql d42f94ed-2943-4fb1-8396-ca677a95c90a
delete from webhook_events
where id = $1::text;
`

const QPruneWebhookEventsBefore = `--sql 9fc4bccf-27c2-4462-b19c-b639bb664067
delete from webhook_events
where received_at < $1::timestamptz;
`
