package sqlinline

const QSelectIntegrationToken = `--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7
select token
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql 6d4f5660-0f7c-4f73-a1f3-9ab6d5e6c7a3
insert into integration_tokens (provider, token, properties, updated_at)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`

const QListIntegrationProviders = `--sql ea7c38ca-71e9-4880-94bd-e654f253f0c6
select provider, updated_at
from integration_tokens
order by provider;
`
