package sqlinline

const QUpsertProfile = `--sql 2c5de14a-d2d3-47d6-8119-dd1045791a14
insert into profiles (id, email, full_name, locale, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, coalesce(nullif($4::text, ''), 'en'), now(), now())
on conflict (id) do update set
    email = excluded.email,
    full_name = coalesce(nullif(excluded.full_name, ''), profiles.full_name),
    locale = coalesce(nullif($4::text, ''), profiles.locale),
    updated_at = now()
returning id, email, full_name, locale, coalesce(stripe_customer_id, ''), created_at, updated_at;
`

const QSelectProfileByID = `--sql 9c419fe6-bd74-464a-b628-f6f95abd79fe
select id, email, full_name, locale, coalesce(stripe_customer_id, ''), created_at, updated_at
from profiles
where id = $1::uuid
limit 1;
`

const QSelectProfileByCustomerID = `--sql 078420a5-c1e0-4f35-8572-fb7eb9cc8435
select id, email, full_name, locale, coalesce(stripe_customer_id, ''), created_at, updated_at
from profiles
where stripe_customer_id = $1::text
limit 1;
`

const QSelectProfileByEmail = `--sql 1e738360-6b3d-4519-b6d8-e4169fccd9b2
select id, email, full_name, locale, coalesce(stripe_customer_id, ''), created_at, updated_at
from profiles
where lower(email) = lower($1::text)
limit 1;
`

const QSetProfileStripeCustomer = `--sql 5d38781a-ec1a-4e48-b948-58daeab051d9
update profiles
set stripe_customer_id = $2::text,
    updated_at = now()
where id = $1::uuid;
`
