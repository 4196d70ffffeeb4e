package sqlinline

const QUpsertSubscription = `--sql 675e8b9d-d9f6-4d44-8b11-4cdbb9cdf378
insert into subscriptions (
    id,
    user_id,
    stripe_customer_id,
    price_id,
    plan,
    status,
    current_period_end,
    cancel_at_period_end,
    canceled_at,
    created_at,
    updated_at
)
values ($1::text, $2::uuid, $3::text, $4::text, $5::text, $6::text, $7::timestamptz, $8::bool, $9::timestamptz, now(), now())
on conflict (id) do update set
    user_id = excluded.user_id,
    stripe_customer_id = excluded.stripe_customer_id,
    price_id = excluded.price_id,
    plan = excluded.plan,
    status = excluded.status,
    current_period_end = excluded.current_period_end,
    cancel_at_period_end = excluded.cancel_at_period_end,
    canceled_at = excluded.canceled_at,
    access_ended_notified_at = case
        when excluded.status = 'canceled' then subscriptions.access_ended_notified_at
        else null
    end,
    updated_at = now();
`

const QSelectCurrentSubscription = `--sql 887f6c66-53ea-4f38-8d4f-733ef092a790
select
    id,
    user_id,
    stripe_customer_id,
    price_id,
    plan,
    status,
    current_period_end,
    cancel_at_period_end,
    canceled_at,
    access_ended_notified_at,
    created_at,
    updated_at
from subscriptions
where user_id = $1::uuid
order by
    case
        when status = 'past_due' then 0
        when status in ('active', 'trialing')
             and not (cancel_at_period_end and current_period_end is not null and current_period_end <= now()) then 0
        else 1
    end,
    greatest(current_period_end, coalesce(canceled_at, current_period_end)) desc nulls last,
    updated_at desc
limit 1;
`

const QListEndedForSweep = `--sql 44436563-bc42-4a3c-98ce-03c21de663d6
select
    id,
    user_id,
    stripe_customer_id,
    price_id,
    plan,
    status,
    current_period_end,
    cancel_at_period_end,
    canceled_at,
    access_ended_notified_at,
    created_at,
    updated_at
from subscriptions
where access_ended_notified_at is null
  and (
      status = 'canceled'
      or (status in ('active', 'trialing') and cancel_at_period_end and current_period_end is not null)
  )
  and greatest(current_period_end, coalesce(canceled_at, current_period_end)) <= $1::timestamptz
  and id > $2::text
order by id
limit $3::int;
`

const QMarkAccessEndedNotified = `--sql d41c181e-cd3d-4859-b4cf-efd33d144fad
update subscriptions
set access_ended_notified_at = $2::timestamptz,
    updated_at = now()
where id = $1::text
  and access_ended_notified_at is null;
`

const QDeleteSubscription = `--sql 5b0e2f6a-93c4-4e0d-a7b1-2c8f4d6e9a13
delete from subscriptions
where id = $1::text;
`
